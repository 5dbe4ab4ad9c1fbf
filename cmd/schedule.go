package cmd

import (
	"context"
	"fmt"
	"io"

	"awssched/internal/aws"
	"awssched/internal/service/preflight"
	"awssched/internal/service/remote"
	"awssched/internal/service/schedule"
	ssmsvc "awssched/internal/service/ssm"

	"github.com/spf13/cobra"
)

// scheduleOptions はscheduleサブコマンドのフラグ
type scheduleOptions struct {
	kind    string
	id      string
	cluster string
	days    string

	startHour int
	stopHour  int
	scaleUp   schedule.Capacity
	scaleDown schedule.Capacity

	workers int
	dryRun  bool
	prune   bool
	allDays bool
	destroy bool

	search string
	output string
}

var (
	scheduleOpts = scheduleOptions{
		scaleDown: schedule.DefaultScaleDown,
	}
	awsClients *aws.Clients
)

// ScheduleCmd はscheduleコマンドを表す
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "起動・停止スケジュール管理コマンド",
	Long: `SSMアソシエーションによる起動・停止（スケール）スケジュールを管理するコマンド群です。
時刻はUTCで指定します。停止時刻が開始時刻より前の場合は日付をまたぐ運用として扱います。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 親のPersistentPreRunEを実行（awsCtx設定と設定ファイル読み込み）
		if err := RootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}

		clients, err := aws.NewAwsClients(cmd.Context(), awsCtx)
		if err != nil {
			return err
		}
		awsClients = clients
		return nil
	},
}

var scheduleApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "スケジュールを作成・更新",
	Long: `IAMポリシー・ロールと曜日ごとのSSMアソシエーションを作成または更新します。
既に希望の状態であれば何も変更しません。

例:
  ` + AppName + ` schedule apply -k ec2 -i i-0123456789abcdef0 --start 0 --stop 10
  ` + AppName + ` schedule apply -k rds -S my-stack --start 23 --stop 9 -d MON-FRI
  ` + AppName + ` schedule apply -k eks -c my-cluster -i workers --start 0 --stop 12 --up-max 3 --up-desired 2
  ` + AppName + ` schedule apply -k ec2 -i i-0123456789abcdef0 --start 0 --stop 10 -d MON,WED --prune`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, &scheduleOpts)
	},
}

var schedulePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "変更内容を表示（変更は行わない）",
	Long: `apply（--destroy指定時はdestroy）で行われる変更内容を表示します。

例:
  ` + AppName + ` schedule plan -k ec2 -i i-0123456789abcdef0 --start 0 --stop 10
  ` + AppName + ` schedule plan -k ec2 -i i-0123456789abcdef0 --destroy --all-days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scheduleOpts
		opts.dryRun = true
		if opts.destroy {
			return runDestroy(cmd, &opts)
		}
		if !cmd.Flags().Changed("start") || !cmd.Flags().Changed("stop") {
			return fmt.Errorf("❌ エラー: --start と --stop を指定してください")
		}
		return runApply(cmd, &opts)
	},
}

var scheduleDestroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "スケジュールを削除",
	Long: `指定した曜日のアソシエーションを削除した後、IAMロールとポリシーを削除します。
既に存在しないものは削除済みとして扱います。

例:
  ` + AppName + ` schedule destroy -k ec2 -i i-0123456789abcdef0 -d MON-FRI
  ` + AppName + ` schedule destroy -k eks -c my-cluster -i workers --all-days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDestroy(cmd, &scheduleOpts)
	},
}

var scheduleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "アソシエーション一覧を表示",
	Long: `SSMアソシエーションの一覧を名前順で表示します。

例:
  ` + AppName + ` schedule ls
  ` + AppName + ` schedule ls --search "Start*"
  ` + AppName + ` schedule ls -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lister := ssmsvc.NewClient(awsClients.Ssm())
		entries, err := schedule.ListSchedules(cmd.Context(), lister, schedule.ListOptions{
			Search: scheduleOpts.search,
			Format: scheduleOpts.output,
		})
		if err != nil {
			return err
		}
		return schedule.Render(cmd.OutOrStdout(), entries, scheduleOpts.output, scheduleOpts.search)
	},
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger NAME",
	Short: "アソシエーションを手動実行",
	Long: `指定したアソシエーションをスケジュールを待たずに1回実行します。
起動・停止の動作確認に使用します。

例:
  ` + AppName + ` schedule trigger StopInstance_i-0123456789abcdef0_FRI`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		client := ssmsvc.NewClient(awsClients.Ssm())

		fmt.Fprintf(out, "🚀 アソシエーション %s を実行します...\n", args[0])
		a, err := client.RunAssociation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("❌ アソシエーションの実行に失敗: %w", err)
		}
		fmt.Fprintf(out, "✅ アソシエーション %s (%s) の実行を開始しました\n", a.Name, a.DocumentName)
		return nil
	},
}

func runApply(cmd *cobra.Command, opts *scheduleOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	kind, err := schedule.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	spec, err := opts.spec(kind)
	if err != nil {
		return err
	}
	docs, err := schedule.DefaultDocuments().Override(appConfig.Documents)
	if err != nil {
		return err
	}

	target, err := preflightTarget(ctx, out, kind, opts)
	if err != nil {
		return err
	}
	desired, err := schedule.BuildDesired(target, spec, docs)
	if err != nil {
		return err
	}
	if spec.Overnight() {
		fmt.Fprintf(out, "ℹ️  停止時刻(%d時)が開始時刻(%d時)より前のため、日付をまたぐスケジュールになります\n", spec.StopHour, spec.StartHour)
	}

	fmt.Fprintf(out, "🚀 %s のスケジュールを適用します (曜日: %s)\n", target.Descriptor, schedule.FormatDays(spec.Days))
	report, err := newReconciler(cmd, opts, target).Apply(ctx, desired, opts.prune)
	return finish(out, report, err)
}

func runDestroy(cmd *cobra.Command, opts *scheduleOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	kind, err := schedule.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	days, err := opts.teardownDays()
	if err != nil {
		return err
	}

	target, err := preflightTarget(ctx, out, kind, opts)
	if err != nil {
		return err
	}
	teardown, err := schedule.BuildTeardown(target, days)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "🗑️  %s のスケジュールを削除します (曜日: %s)\n", target.Descriptor, schedule.FormatDays(days))
	report, err := newReconciler(cmd, opts, target).Destroy(ctx, teardown, opts.prune)
	return finish(out, report, err)
}

// preflightTarget は対象リソースを特定し、変更前の事前チェックを行う
func preflightTarget(ctx context.Context, out io.Writer, kind schedule.Kind, opts *scheduleOptions) (schedule.Target, error) {
	id, cluster := opts.id, opts.cluster
	if id == "" {
		resolveStackName()
		if stackName == "" {
			return schedule.Target{}, fmt.Errorf("❌ エラー: -i オプションまたは -S オプションで対象を指定してください")
		}
		var err error
		id, cluster, err = resolveIdFromStack(ctx, awsClients.Cfn(), stackName, kind)
		if err != nil {
			return schedule.Target{}, err
		}
		fmt.Fprintf(out, "🔍 スタック %s から対象 %s を特定しました\n", stackName, id)
	}

	desc, err := schedule.NewDescriptor(kind, id, cluster, awsClients.Region(), awsCtx.Profile)
	if err != nil {
		return schedule.Target{}, err
	}

	checker := &preflight.Checker{
		STS:        awsClients.Sts(),
		Regions:    awsClients.Ec2(),
		Instances:  awsClients.Ec2(),
		Databases:  awsClients.Rds(),
		NodeGroups: awsClients.Eks(),
		Out:        out,
		Logger:     appLogger,
	}
	return checker.Run(ctx, desc)
}

func newReconciler(cmd *cobra.Command, opts *scheduleOptions, target schedule.Target) *schedule.Reconciler {
	workers := opts.workers
	if !cmd.Flags().Changed("workers") {
		workers = appConfig.Workers
	}
	accessor := remote.New(awsClients, target.Partition, target.AccountID)
	return schedule.NewReconciler(accessor,
		schedule.WithOutput(cmd.OutOrStdout()),
		schedule.WithLogger(appLogger),
		schedule.WithWorkers(workers),
		schedule.WithDryRun(opts.dryRun),
	)
}

// finish は結果を表示し、失敗があればエラーを返す
func finish(out io.Writer, report *schedule.Report, err error) error {
	if report == nil {
		return err
	}
	report.Print(out)
	if err != nil {
		return fmt.Errorf("❌ 一部のリソースの処理に失敗しました: %w", err)
	}
	return nil
}

// spec はフラグの値から希望スケジュールを組み立てる
func (o *scheduleOptions) spec(kind schedule.Kind) (schedule.Spec, error) {
	days, err := schedule.ParseDays(o.days)
	if err != nil {
		return schedule.Spec{}, err
	}
	spec := schedule.Spec{
		StartHour: o.startHour,
		StopHour:  o.stopHour,
		Days:      days,
	}
	if kind == schedule.KindNodeGroup {
		spec.Scale = &schedule.ScaleSpec{Up: o.scaleUp, Down: o.scaleDown}
	}
	if err := spec.Validate(kind); err != nil {
		return schedule.Spec{}, err
	}
	return spec, nil
}

// teardownDays は削除対象の曜日を返す。--all-days指定時は全曜日
func (o *scheduleOptions) teardownDays() ([]schedule.Weekday, error) {
	if o.allDays {
		return schedule.AllWeekdays, nil
	}
	return schedule.ParseDays(o.days)
}

func addTargetFlags(cmd *cobra.Command, opts *scheduleOptions) {
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "リソース種別 (ec2|rds|eks)")
	cmd.Flags().StringVarP(&opts.id, "id", "i", "", "インスタンスID / DBインスタンス識別子 / ノードグループ名")
	cmd.Flags().StringVarP(&opts.cluster, "cluster", "c", "", "EKSクラスター名（ノードグループの場合）")
	cmd.Flags().StringVarP(&stackName, "stack", "S", "", "CloudFormationスタック名（-i の代わりにスタックから対象を特定）")
	cmd.Flags().StringVarP(&opts.days, "days", "d", "MON-FRI", "曜日 (例: MON-FRI, MON,WED,FRI)")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "アソシエーション処理の同時実行数")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "指定外の曜日のアソシエーションを削除")
	_ = cmd.MarkFlagRequired("kind")
}

func addSpecFlags(cmd *cobra.Command, opts *scheduleOptions, required bool) {
	cmd.Flags().IntVar(&opts.startHour, "start", 0, "開始（スケールアップ）時刻 UTC 0-23")
	cmd.Flags().IntVar(&opts.stopHour, "stop", 0, "停止（スケールダウン）時刻 UTC 0-23")
	cmd.Flags().Int32Var(&opts.scaleUp.Min, "up-min", 1, "スケールアップ時の最小ノード数")
	cmd.Flags().Int32Var(&opts.scaleUp.Max, "up-max", 1, "スケールアップ時の最大ノード数")
	cmd.Flags().Int32Var(&opts.scaleUp.Desired, "up-desired", 1, "スケールアップ時の希望ノード数")
	cmd.Flags().Int32Var(&opts.scaleDown.Min, "down-min", schedule.DefaultScaleDown.Min, "スケールダウン時の最小ノード数")
	cmd.Flags().Int32Var(&opts.scaleDown.Max, "down-max", schedule.DefaultScaleDown.Max, "スケールダウン時の最大ノード数")
	cmd.Flags().Int32Var(&opts.scaleDown.Desired, "down-desired", schedule.DefaultScaleDown.Desired, "スケールダウン時の希望ノード数")
	if required {
		_ = cmd.MarkFlagRequired("start")
		_ = cmd.MarkFlagRequired("stop")
	}
}

func init() {
	RootCmd.AddCommand(ScheduleCmd)
	ScheduleCmd.AddCommand(scheduleApplyCmd)
	ScheduleCmd.AddCommand(schedulePlanCmd)
	ScheduleCmd.AddCommand(scheduleDestroyCmd)
	ScheduleCmd.AddCommand(scheduleLsCmd)
	ScheduleCmd.AddCommand(scheduleTriggerCmd)

	// apply
	addTargetFlags(scheduleApplyCmd, &scheduleOpts)
	addSpecFlags(scheduleApplyCmd, &scheduleOpts, true)
	scheduleApplyCmd.Flags().BoolVar(&scheduleOpts.dryRun, "dry-run", false, "変更内容を表示するのみで実行しない")

	// plan
	addTargetFlags(schedulePlanCmd, &scheduleOpts)
	addSpecFlags(schedulePlanCmd, &scheduleOpts, false)
	schedulePlanCmd.Flags().BoolVar(&scheduleOpts.destroy, "destroy", false, "削除時の変更内容を表示")
	schedulePlanCmd.Flags().BoolVar(&scheduleOpts.allDays, "all-days", false, "--destroy 時に全曜日を対象にする")

	// destroy
	addTargetFlags(scheduleDestroyCmd, &scheduleOpts)
	scheduleDestroyCmd.Flags().BoolVar(&scheduleOpts.dryRun, "dry-run", false, "変更内容を表示するのみで実行しない")
	scheduleDestroyCmd.Flags().BoolVar(&scheduleOpts.allDays, "all-days", false, "全曜日のアソシエーションを削除")

	// ls
	scheduleLsCmd.Flags().StringVarP(&scheduleOpts.search, "search", "s", "", "名前の検索パターン（*?を含む場合はglob）")
	scheduleLsCmd.Flags().StringVarP(&scheduleOpts.output, "output", "o", schedule.FormatTable, "出力形式 (table|json|markdown)")
}
