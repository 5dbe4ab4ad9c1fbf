package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"awssched/internal/aws"
	"awssched/internal/config"
	"awssched/internal/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const AppName = "awssched"

var (
	region    string
	profile   string
	stackName string
	cfgFile   string
	logLevel  string

	appConfig *config.Config
	awsCtx    aws.Context
	appLogger = zerolog.Nop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   AppName,
	Short: "EC2/RDS/EKSノードグループの起動・停止スケジュールを管理するCLI",
	Long: `SSMオートメーションのアソシエーションとIAMロール・ポリシーを使って、
EC2インスタンス・RDSインスタンス・EKSノードグループの起動/停止（スケール）スケジュールを管理します。

何度実行しても同じ結果になるよう、既存のリソースを確認してから差分のみを作成・更新します。`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&region, "region", "R", "", "AWSリージョン")
	RootCmd.PersistentFlags().StringVarP(&profile, "profile", "P", "", "AWSプロファイル")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "設定ファイル (デフォルト: ~/.config/awssched/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug|info|warn|error)")

	// コマンド実行前に共通で設定の読み込みとプロファイルチェックを行う
	RootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// ヘルプ・バージョン表示の場合はスキップ
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		if logLevel == "" {
			logLevel = cfg.LogLevel
		}
		appLogger = logger.New(logLevel, os.Stderr)

		profile, region = cfg.Merge(profile, region)
		if err := checkAndSetProfile(cmd); err != nil {
			return err
		}
		awsCtx = aws.Context{Profile: profile, Region: region}
		appLogger.Debug().Str("profile", profile).Str("region", region).Msg("aws context")
		return nil
	}
}

// checkAndSetProfile はプロファイルの確認と設定を行うプライベート関数
func checkAndSetProfile(cmd *cobra.Command) error {
	// プロファイルがすでに指定されている場合は何もしない
	if profile != "" {
		return nil
	}
	// 環境変数からプロファイル取得を試みる
	envProfile := os.Getenv("AWS_PROFILE")
	if envProfile == "" {
		return errors.New("❌ エラー: プロファイルが指定されていません。-Pオプションまたは AWS_PROFILE 環境変数を指定してください")
	}
	profile = envProfile
	cmd.Println("🔍 環境変数 AWS_PROFILE の値 '" + profile + "' を使用します")
	return nil
}
