package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAwsConfig は認証情報からAWS設定を読み込む
func LoadAwsConfig(ctx context.Context, awsCtx Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, awsCtx.loadOptions()...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("AWS設定の読み込みに失敗 (profile=%s): %w", awsCtx.Profile, err)
	}
	return cfg, nil
}

func (c Context) loadOptions() []func(*config.LoadOptions) error {
	opts := make([]func(*config.LoadOptions) error, 0, 2)
	if c.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.Profile))
	}
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	return opts
}
