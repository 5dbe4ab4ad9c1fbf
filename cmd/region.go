package cmd

import (
	"fmt"
	"io"

	"awssched/internal/aws"
	"awssched/internal/service/common"
	regionSvc "awssched/internal/service/region"

	"github.com/spf13/cobra"
)

var showAllRegions bool

const regionLsAlias = "regions"

// RegionCmd represents the region command
var RegionCmd = &cobra.Command{
	Use:     "region",
	Aliases: []string{regionLsAlias},
	Short:   "リージョン関連の操作",
	Long: `AWSリージョンに関する情報を取得します。
スケジュール対象のリージョンが有効化されているかの確認に使用できます。

使用例:
  ` + AppName + ` region ls # サブコマンドでリージョン一覧を表示
  ` + AppName + ` regions # エイリアスで直接リージョン一覧を表示`,
}

var regionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "利用可能なAWSリージョンを一覧表示",
	Long: `利用可能なAWSリージョンの一覧を表示します。

デフォルトでは有効なリージョン（opt-in-not-required と opted-in）のみを表示します。
--all フラグを使用すると、無効なリージョンも含めて全てのリージョンを表示します。

使用例:
  ` + AppName + ` region ls
  ` + AppName + ` region ls --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRegions(cmd, showAllRegions)
	},
}

func listRegions(cmd *cobra.Command, showAllRegions bool) error {
	clients, err := aws.NewAwsClients(cmd.Context(), awsCtx)
	if err != nil {
		return fmt.Errorf("AWS設定の読み込みエラー: %w", err)
	}

	regions, err := regionSvc.ListRegions(cmd.Context(), clients.Ec2(), showAllRegions)
	if err != nil {
		return fmt.Errorf("❌ リージョン一覧取得でエラー: %w", err)
	}

	printRegions(cmd.OutOrStdout(), regions, showAllRegions)
	return nil
}

func printRegions(w io.Writer, regions []regionSvc.AwsRegion, showAllRegions bool) {
	available, disabled := regionSvc.GroupRegions(regions)

	columns := []common.TableColumn{
		{Header: "リージョン"},
		{Header: "状態"},
	}
	toRows := func(rs []regionSvc.AwsRegion) [][]string {
		rows := make([][]string, 0, len(rs))
		for _, r := range rs {
			rows = append(rows, []string{r.RegionName, r.OptInStatus})
		}
		return rows
	}

	common.FprintTable(w, fmt.Sprintf("有効なリージョン (%d件)", len(available)), columns, toRows(available))
	if showAllRegions && len(disabled) > 0 {
		fmt.Fprintln(w)
		common.FprintTable(w, fmt.Sprintf("無効なリージョン (%d件)", len(disabled)), columns, toRows(disabled))
	}
}

func init() {
	RootCmd.AddCommand(RegionCmd)
	RegionCmd.AddCommand(regionLsCmd)

	// --all フラグをregionコマンドにPersistentFlagsとして登録（サブコマンドでも利用可能）
	RegionCmd.PersistentFlags().BoolVarP(&showAllRegions, "all", "a", false, "無効なリージョンも含めて全てのリージョンを表示")

	// エイリアスが直接実行された場合の処理
	RegionCmd.RunE = func(cmd *cobra.Command, args []string) error {
		// エイリアスで呼ばれた場合、lsコマンドのロジックを実行
		if cmd.CalledAs() == regionLsAlias {
			return listRegions(cmd, showAllRegions)
		}
		// 'region' コマンドが直接呼ばれた場合はヘルプを表示
		return cmd.Help()
	}
}
