package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "AWSSCHED"
	DefaultWorkers  = 1
	DefaultLogLevel = "warn"
)

// Config は設定ファイルと環境変数から読み込んだ既定値
type Config struct {
	Profile  string `mapstructure:"profile"`
	Region   string `mapstructure:"region"`
	Workers  int    `mapstructure:"workers"`
	LogLevel string `mapstructure:"log_level"`

	// documents.<kind>.<action> でSSMドキュメント名を上書きする
	Documents map[string]map[string]string `mapstructure:"documents"`
}

// DefaultPath は既定の設定ファイルのディレクトリを返す
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "awssched"), nil
}

// Load は設定を読み込む。pathが空の場合は既定の場所を探し、見つからなければ既定値のみを使う
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := DefaultPath(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("profile", "")
	v.SetDefault("region", "")
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("log_level", DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers は1以上を指定してください: %d", cfg.Workers)
	}
	return &cfg, nil
}

// Merge はフラグで指定された値を優先してプロファイルとリージョンを決定する
func (c *Config) Merge(profile, region string) (string, string) {
	if profile == "" {
		profile = c.Profile
	}
	if region == "" {
		region = c.Region
	}
	return profile, region
}
