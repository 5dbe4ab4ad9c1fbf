package schedule

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"

	"awssched/internal/service/common"
)

// Op は変更操作の種類
type Op string

const (
	OpNoOp   Op = "noop"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAttach Op = "attach"
	OpDetach Op = "detach"
)

// Label は表示用の操作名
func (o Op) Label() string {
	switch o {
	case OpCreate:
		return "作成"
	case OpUpdate:
		return "更新"
	case OpDelete:
		return "削除"
	case OpAttach:
		return "アタッチ"
	case OpDetach:
		return "デタッチ"
	}
	return "変更なし"
}

// Mutating は変更を伴う操作かどうか
func (o Op) Mutating() bool {
	return o != OpNoOp
}

// ObjectType は操作対象のオブジェクト種別
type ObjectType string

const (
	ObjectPolicy      ObjectType = "Policy"
	ObjectRole        ObjectType = "Role"
	ObjectAttachment  ObjectType = "RolePolicyAttachment"
	ObjectAssociation ObjectType = "Association"
)

// Intent は1つのオブジェクトに対する変更意図
type Intent struct {
	Op     Op
	Object ObjectType
	Name   string

	// ID はアソシエーションID、またはアタッチ・削除対象のポリシーARN
	ID string

	// Document は作成時のポリシー/信頼ドキュメント
	Document string

	Association *AssociationInput

	// Changes は更新時に差分のあった項目
	Changes []string
}

func (i Intent) String() string {
	s := fmt.Sprintf("%s %s %s", i.Op.Label(), i.Object, i.Name)
	if len(i.Changes) > 0 {
		s += fmt.Sprintf(" %v", i.Changes)
	}
	return s
}

// Mode は計画の種類
type Mode string

const (
	ModeApply   Mode = "apply"
	ModeDestroy Mode = "destroy"
)

// Plan は観測状態と希望状態から求めた変更意図の一覧
//
// 適用モードでは Identity → Associations の順、
// 削除モードでは Associations → Identity の順に実行する。
type Plan struct {
	Mode         Mode
	Target       Target
	Identity     []Intent
	Associations []Intent
}

// Intents は実行順に並べた全ての変更意図を返す
func (p Plan) Intents() []Intent {
	if p.Mode == ModeDestroy {
		return slices.Concat(p.Associations, p.Identity)
	}
	return slices.Concat(p.Identity, p.Associations)
}

// Mutations は変更を伴う意図の数を返す
func (p Plan) Mutations() int {
	n := 0
	for _, i := range p.Intents() {
		if i.Op.Mutating() {
			n++
		}
	}
	return n
}

// Print は計画を表示する
func (p Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "%s 実行計画 (%s): %s\n", common.InfoIcon, p.Mode, p.Target.Descriptor)
	for _, i := range p.Intents() {
		icon := "  "
		switch i.Op {
		case OpCreate, OpAttach:
			icon = "+ "
		case OpUpdate:
			icon = "~ "
		case OpDelete, OpDetach:
			icon = "- "
		}
		fmt.Fprintf(w, "  %s%s\n", icon, i)
	}
	fmt.Fprintf(w, "変更: %d件\n", p.Mutations())
}

// Snapshot は観測したリモート状態
type Snapshot struct {
	Policy *Policy
	Role   *Role

	// Associations は希望する名前ごとの観測結果。存在しない場合はnil
	Associations map[string]*Association

	// Extra は接頭辞が一致するが希望状態に含まれないアソシエーション
	Extra []Association
}

// PlanApply は適用モードの計画を求める。pruneが真の場合はExtraを削除対象にする
func PlanApply(desired Desired, snap Snapshot, prune bool) Plan {
	plan := Plan{Mode: ModeApply, Target: desired.Target}

	policyArn := desired.PolicyArn
	if snap.Policy == nil {
		plan.Identity = append(plan.Identity, Intent{
			Op: OpCreate, Object: ObjectPolicy, Name: desired.PolicyName, Document: desired.PolicyDocument,
		})
	} else {
		policyArn = snap.Policy.Arn
		plan.Identity = append(plan.Identity, Intent{
			Op: OpNoOp, Object: ObjectPolicy, Name: desired.PolicyName, ID: policyArn,
		})
	}

	roleArn := desired.RoleArn
	attached := false
	if snap.Role == nil {
		plan.Identity = append(plan.Identity, Intent{
			Op: OpCreate, Object: ObjectRole, Name: desired.RoleName, Document: desired.TrustDocument,
		})
	} else {
		roleArn = snap.Role.Arn
		attached = slices.Contains(snap.Role.AttachedPolicyArns, policyArn)
		plan.Identity = append(plan.Identity, Intent{
			Op: OpNoOp, Object: ObjectRole, Name: desired.RoleName, ID: roleArn,
		})
	}

	attachOp := OpAttach
	if attached {
		attachOp = OpNoOp
	}
	plan.Identity = append(plan.Identity, Intent{
		Op: attachOp, Object: ObjectAttachment, Name: desired.RoleName, ID: policyArn,
	})

	for _, da := range desired.Associations {
		in := da.AssociationInput
		in.Parameters = withAssumeRole(in.Parameters, roleArn)

		observed := snap.Associations[in.Name]
		if observed == nil {
			plan.Associations = append(plan.Associations, Intent{
				Op: OpCreate, Object: ObjectAssociation, Name: in.Name, Association: &in,
			})
			continue
		}

		intent := Intent{Op: OpNoOp, Object: ObjectAssociation, Name: in.Name, ID: observed.ID, Association: &in}
		if changes := diffAssociation(*observed, in); len(changes) > 0 {
			intent.Op = OpUpdate
			intent.Changes = changes
		}
		plan.Associations = append(plan.Associations, intent)
	}

	if prune {
		plan.Associations = append(plan.Associations, deleteIntents(snap.Extra)...)
	}
	return plan
}

// PlanDestroy は削除モードの計画を求める。存在しないオブジェクトは変更なしとして扱う
func PlanDestroy(teardown Desired, snap Snapshot) Plan {
	plan := Plan{Mode: ModeDestroy, Target: teardown.Target}

	for _, da := range teardown.Associations {
		observed := snap.Associations[da.Name]
		if observed == nil {
			plan.Associations = append(plan.Associations, Intent{Op: OpNoOp, Object: ObjectAssociation, Name: da.Name})
			continue
		}
		plan.Associations = append(plan.Associations, Intent{
			Op: OpDelete, Object: ObjectAssociation, Name: da.Name, ID: observed.ID,
		})
	}
	plan.Associations = append(plan.Associations, deleteIntents(snap.Extra)...)

	if snap.Role != nil {
		// ロールはアタッチ済みのポリシーが残っていると削除できない
		for _, policyArn := range snap.Role.AttachedPolicyArns {
			plan.Identity = append(plan.Identity, Intent{
				Op: OpDetach, Object: ObjectAttachment, Name: teardown.RoleName, ID: policyArn,
			})
		}
		plan.Identity = append(plan.Identity, Intent{Op: OpDelete, Object: ObjectRole, Name: teardown.RoleName})
	} else {
		plan.Identity = append(plan.Identity, Intent{Op: OpNoOp, Object: ObjectRole, Name: teardown.RoleName})
	}

	if snap.Policy != nil {
		plan.Identity = append(plan.Identity, Intent{
			Op: OpDelete, Object: ObjectPolicy, Name: teardown.PolicyName, ID: snap.Policy.Arn,
		})
	} else {
		plan.Identity = append(plan.Identity, Intent{Op: OpNoOp, Object: ObjectPolicy, Name: teardown.PolicyName})
	}
	return plan
}

func deleteIntents(extra []Association) []Intent {
	sorted := slices.Clone(extra)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	intents := make([]Intent, 0, len(sorted))
	for _, a := range sorted {
		intents = append(intents, Intent{Op: OpDelete, Object: ObjectAssociation, Name: a.Name, ID: a.ID})
	}
	return intents
}

// diffAssociation はドキュメント名・スケジュール式・パラメータの差分項目を返す
func diffAssociation(observed Association, desired AssociationInput) []string {
	var changes []string
	if observed.DocumentName != desired.DocumentName {
		changes = append(changes, "documentName")
	}
	if observed.ScheduleExpression != desired.ScheduleExpression {
		changes = append(changes, "scheduleExpression")
	}
	if !parametersEqual(observed.Parameters, desired.Parameters) {
		changes = append(changes, "parameters")
	}
	return changes
}

func parametersEqual(a, b map[string][]string) bool {
	return maps.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}

func withAssumeRole(params map[string][]string, roleArn string) map[string][]string {
	if _, ok := params[AssumeRoleParameter]; !ok || roleArn == "" {
		return params
	}
	out := maps.Clone(params)
	out[AssumeRoleParameter] = []string{roleArn}
	return out
}
