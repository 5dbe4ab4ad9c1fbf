package region

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

type EC2API interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// ListRegions はAWSリージョンの一覧を名前順で取得する
func ListRegions(ctx context.Context, api EC2API, showAllRegions bool) ([]AwsRegion, error) {
	result, err := api.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(showAllRegions),
	})
	if err != nil {
		return nil, fmt.Errorf("リージョン一覧の取得に失敗: %w", err)
	}

	regions := make([]AwsRegion, 0, len(result.Regions))
	for _, r := range result.Regions {
		regions = append(regions, AwsRegion{
			RegionName:  aws.ToString(r.RegionName),
			OptInStatus: aws.ToString(r.OptInStatus),
		})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].RegionName < regions[j].RegionName })
	return regions, nil
}

// GroupRegions はリージョンを有効/無効でグループ化する
func GroupRegions(regions []AwsRegion) ([]AwsRegion, []AwsRegion) {
	var available, disabled []AwsRegion

	for _, region := range regions {
		if region.Enabled() {
			available = append(available, region)
		} else {
			disabled = append(disabled, region)
		}
	}

	return available, disabled
}

// CheckRegion はリージョンが存在し、かつ有効化されているかを確認する
func CheckRegion(ctx context.Context, api EC2API, name string) error {
	if name == "" {
		return fmt.Errorf("リージョンが指定されていません")
	}

	regions, err := ListRegions(ctx, api, true)
	if err != nil {
		return err
	}
	for _, r := range regions {
		if r.RegionName != name {
			continue
		}
		if !r.Enabled() {
			return fmt.Errorf("リージョン %s は有効化されていません (%s)", name, r.OptInStatus)
		}
		return nil
	}
	return fmt.Errorf("リージョン %s は存在しません", name)
}
