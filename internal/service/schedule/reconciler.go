package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"

	"awssched/internal/service/common"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reconciler はリモート状態を希望状態に収束させる
type Reconciler struct {
	accessor Accessor
	out      io.Writer
	logger   zerolog.Logger
	workers  int
	dryRun   bool
}

// Option はReconcilerの設定
type Option func(*Reconciler)

// WithOutput は進捗表示の出力先を設定する
func WithOutput(w io.Writer) Option {
	return func(r *Reconciler) { r.out = w }
}

// WithLogger はログ出力先を設定する
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithWorkers はアソシエーション処理の同時実行数を設定する。1の場合は逐次実行
func WithWorkers(n int) Option {
	return func(r *Reconciler) { r.workers = max(n, 1) }
}

// WithDryRun は計画の表示のみを行い変更しないようにする
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) { r.dryRun = dryRun }
}

// NewReconciler は新しいReconcilerを作成
func NewReconciler(accessor Accessor, opts ...Option) *Reconciler {
	r := &Reconciler{
		accessor: accessor,
		out:      io.Discard,
		logger:   zerolog.Nop(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe は希望状態に含まれる名前でリモート状態を取得する。
// listExtraが真の場合は接頭辞が一致する希望外のアソシエーションも取得する
func (r *Reconciler) Observe(ctx context.Context, desired Desired, listExtra bool) (Snapshot, error) {
	snap := Snapshot{Associations: make(map[string]*Association, len(desired.Associations))}

	policy, err := r.accessor.FindPolicy(ctx, desired.PolicyName)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ポリシー %s の取得に失敗: %w", desired.PolicyName, err)
	}
	snap.Policy = policy

	role, err := r.accessor.FindRole(ctx, desired.RoleName)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ロール %s の取得に失敗: %w", desired.RoleName, err)
	}
	snap.Role = role

	for _, da := range desired.Associations {
		a, err := r.accessor.FindAssociation(ctx, da.Name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("アソシエーション %s の取得に失敗: %w", da.Name, err)
		}
		snap.Associations[da.Name] = a
	}

	if listExtra {
		for _, prefix := range desired.Prefixes() {
			listed, err := r.accessor.ListAssociations(ctx, prefix)
			if err != nil {
				return Snapshot{}, fmt.Errorf("アソシエーション一覧の取得に失敗: %w", err)
			}
			for _, a := range listed {
				if _, ok := snap.Associations[a.Name]; ok || !desired.Owns(a.Name) {
					continue
				}
				snap.Extra = append(snap.Extra, a)
			}
		}
	}

	r.logger.Debug().
		Bool("policy", snap.Policy != nil).
		Bool("role", snap.Role != nil).
		Int("associations", countPresent(snap.Associations)).
		Int("extra", len(snap.Extra)).
		Msg("observed remote state")
	return snap, nil
}

// PlanApply はリモート状態を取得して適用モードの計画を求める
func (r *Reconciler) PlanApply(ctx context.Context, desired Desired, prune bool) (Plan, error) {
	snap, err := r.Observe(ctx, desired, prune)
	if err != nil {
		return Plan{}, err
	}
	return PlanApply(desired, snap, prune), nil
}

// PlanDestroy はリモート状態を取得して削除モードの計画を求める
func (r *Reconciler) PlanDestroy(ctx context.Context, teardown Desired, prune bool) (Plan, error) {
	snap, err := r.Observe(ctx, teardown, prune)
	if err != nil {
		return Plan{}, err
	}
	return PlanDestroy(teardown, snap), nil
}

// Apply は希望状態を適用する
func (r *Reconciler) Apply(ctx context.Context, desired Desired, prune bool) (*Report, error) {
	plan, err := r.PlanApply(ctx, desired, prune)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan)
}

// Destroy は曜日分のアソシエーションとロール・ポリシーを削除する
func (r *Reconciler) Destroy(ctx context.Context, teardown Desired, prune bool) (*Report, error) {
	plan, err := r.PlanDestroy(ctx, teardown, prune)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan)
}

// Execute は計画を実行する。
// 失敗したオブジェクトに依存する後続の処理はスキップし、独立した処理は継続する
func (r *Reconciler) Execute(ctx context.Context, plan Plan) (*Report, error) {
	report := &Report{DryRun: r.dryRun}
	if r.dryRun {
		plan.Print(r.out)
		return report, nil
	}

	state := &execState{}
	for _, i := range plan.Identity {
		switch i.Object {
		case ObjectPolicy:
			state.policyArn = i.ID
		case ObjectRole:
			state.roleArn = i.ID
		}
	}

	switch plan.Mode {
	case ModeDestroy:
		if !r.executeAssociations(ctx, plan.Associations, state, report) {
			r.skipAll(plan.Identity, report, "アソシエーションの削除に失敗したためロール・ポリシーの削除をスキップします")
			break
		}
		r.executeIdentity(ctx, plan.Identity, state, report)
	default:
		if !r.executeIdentity(ctx, plan.Identity, state, report) {
			r.skipAll(plan.Associations, report, "ロール・ポリシーの準備に失敗したためアソシエーションの処理をスキップします")
			break
		}
		r.executeAssociations(ctx, plan.Associations, state, report)
	}

	return report, report.Err()
}

type execState struct {
	policyArn string
	roleArn   string
}

// executeIdentity はポリシー・ロールの操作を順番に実行する。全て成功した場合に真を返す
func (r *Reconciler) executeIdentity(ctx context.Context, intents []Intent, state *execState, report *Report) bool {
	failed := make(map[ObjectType]bool)
	for _, i := range intents {
		if dep, blocked := blockedBy(i, failed); blocked {
			r.logger.Warn().Str("object", string(i.Object)).Str("name", i.Name).Str("dependency", string(dep)).Msg("skipped")
			fmt.Fprintf(r.out, "%s %s %s は %s の失敗によりスキップしました\n", common.SkipIcon, i.Object, i.Name, dep)
			failed[i.Object] = true
			report.skip()
			continue
		}

		err := r.executeIdentityIntent(ctx, i, state)
		if err != nil {
			failed[i.Object] = true
		}
		r.reportIntent(i, err, report)
	}
	return len(failed) == 0
}

// blockedBy は依存先が失敗しているかを判定する
func blockedBy(i Intent, failed map[ObjectType]bool) (ObjectType, bool) {
	var deps []ObjectType
	switch i.Object {
	case ObjectAttachment:
		if i.Op == OpAttach || i.Op == OpNoOp {
			deps = []ObjectType{ObjectPolicy, ObjectRole}
		}
	case ObjectRole:
		if i.Op == OpDelete {
			deps = []ObjectType{ObjectAttachment}
		}
	case ObjectPolicy:
		if i.Op == OpDelete {
			deps = []ObjectType{ObjectAttachment}
		}
	}
	for _, d := range deps {
		if failed[d] {
			return d, true
		}
	}
	return "", false
}

func (r *Reconciler) executeIdentityIntent(ctx context.Context, i Intent, state *execState) error {
	var err error
	switch {
	case !i.Op.Mutating():
		return nil
	case i.Object == ObjectPolicy && i.Op == OpCreate:
		var p *Policy
		if p, err = r.accessor.CreatePolicy(ctx, i.Name, i.Document); err == nil {
			state.policyArn = p.Arn
		}
	case i.Object == ObjectPolicy && i.Op == OpDelete:
		err = ignoreNotFound(r.accessor.DeletePolicy(ctx, i.ID))
	case i.Object == ObjectRole && i.Op == OpCreate:
		var role *Role
		if role, err = r.accessor.CreateRole(ctx, i.Name, i.Document); err == nil {
			state.roleArn = role.Arn
		}
	case i.Object == ObjectRole && i.Op == OpDelete:
		err = ignoreNotFound(r.accessor.DeleteRole(ctx, i.Name))
	case i.Object == ObjectAttachment && i.Op == OpAttach:
		policyArn := i.ID
		if state.policyArn != "" {
			policyArn = state.policyArn
		}
		err = r.accessor.AttachPolicy(ctx, i.Name, policyArn)
	case i.Object == ObjectAttachment && i.Op == OpDetach:
		err = ignoreNotFound(r.accessor.DetachPolicy(ctx, i.Name, i.ID))
	default:
		err = fmt.Errorf("未対応の操作です: %s %s", i.Op, i.Object)
	}

	if err != nil {
		return &RemoteAPIError{Op: i.Op, Object: i.Object, Name: i.Name, Err: err}
	}
	return nil
}

// executeAssociations はアソシエーションの操作をワーカー数に応じて実行する。
// 全ての結果を収集してから返し、全て成功した場合に真を返す
func (r *Reconciler) executeAssociations(ctx context.Context, intents []Intent, state *execState, report *Report) bool {
	var bar *progressbar.ProgressBar
	if r.workers > 1 && len(intents) > 0 {
		bar = newProgressBar(r.out, len(intents))
	}

	results := make([]common.ProcessResult, len(intents))
	executor := common.NewParallelExecutor(r.workers)
	for idx, i := range intents {
		executor.Execute(func() {
			err := r.executeAssociationIntent(ctx, i, state)
			results[idx] = common.ProcessResult{Item: i.Name, Success: err == nil, Error: err}
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	executor.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(r.out)
	}

	// 表示と集計は計画順に行う
	for idx, res := range results {
		r.reportIntent(intents[idx], res.Error, report)
	}
	_, failCount := common.CollectResults(results)
	return failCount == 0
}

func (r *Reconciler) executeAssociationIntent(ctx context.Context, i Intent, state *execState) error {
	var err error
	switch i.Op {
	case OpNoOp:
		return nil
	case OpCreate:
		_, err = r.accessor.CreateAssociation(ctx, r.resolveInput(i, state))
	case OpUpdate:
		err = r.accessor.UpdateAssociation(ctx, i.ID, r.resolveInput(i, state))
	case OpDelete:
		err = ignoreNotFound(r.accessor.DeleteAssociation(ctx, i.ID))
	default:
		err = fmt.Errorf("未対応の操作です: %s", i.Op)
	}
	if err != nil {
		return &RemoteAPIError{Op: i.Op, Object: i.Object, Name: i.Name, Err: err}
	}
	return nil
}

// resolveInput は実行時に確定したロールARNをパラメータへ反映する
func (r *Reconciler) resolveInput(i Intent, state *execState) AssociationInput {
	in := *i.Association
	in.Parameters = withAssumeRole(in.Parameters, state.roleArn)
	return in
}

func (r *Reconciler) reportIntent(i Intent, err error, report *Report) {
	report.record(i, err)

	if err != nil {
		r.logger.Error().Err(err).Str("object", string(i.Object)).Str("name", i.Name).Str("op", string(i.Op)).Msg("operation failed")
		fmt.Fprintf(r.out, "%s %v\n", common.ErrorIcon, err)
		return
	}
	r.logger.Debug().Str("object", string(i.Object)).Str("name", i.Name).Str("op", string(i.Op)).Msg("operation done")
	if i.Op.Mutating() {
		fmt.Fprintf(r.out, "%s %s %s を%sしました\n", common.SuccessIcon, i.Object, i.Name, i.Op.Label())
	}
}

func (r *Reconciler) skipAll(intents []Intent, report *Report, reason string) {
	fmt.Fprintf(r.out, "%s %s\n", common.WarningIcon, reason)
	for _, i := range intents {
		if i.Op.Mutating() {
			report.skip()
		}
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func countPresent(m map[string]*Association) int {
	n := 0
	for _, a := range m {
		if a != nil {
			n++
		}
	}
	return n
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf(common.ProcessingFormat, common.ProcessIcon, "アソシエーション")),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
	)
}
