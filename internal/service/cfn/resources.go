package cfn

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// スケジュール対象として扱うリソースタイプ
const (
	ResourceTypeEc2Instance  = "AWS::EC2::Instance"
	ResourceTypeRdsInstance  = "AWS::RDS::DBInstance"
	ResourceTypeEksNodegroup = "AWS::EKS::Nodegroup"
)

type CloudFormationAPI interface {
	DescribeStackResources(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error)
}

// GetStackResources はスタックからリソース一覧を取得する関数
func GetStackResources(ctx context.Context, api CloudFormationAPI, stackName string) ([]types.StackResource, error) {
	resp, err := api.DescribeStackResources(ctx, &cloudformation.DescribeStackResourcesInput{
		StackName: awssdk.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("CloudFormationスタックのリソース取得に失敗: %w", err)
	}

	// スタック存在確認
	if len(resp.StackResources) == 0 {
		return nil, fmt.Errorf("スタック '%s' にリソースが見つかりませんでした", stackName)
	}

	return resp.StackResources, nil
}

// GetResourceIdsFromStack はスタックから指定タイプのリソースの物理IDを取得する
func GetResourceIdsFromStack(ctx context.Context, api CloudFormationAPI, stackName, resourceType string) ([]string, error) {
	stackResources, err := GetStackResources(ctx, api, stackName)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, resource := range stackResources {
		if awssdk.ToString(resource.ResourceType) == resourceType && resource.PhysicalResourceId != nil {
			ids = append(ids, *resource.PhysicalResourceId)
		}
	}
	return ids, nil
}

// GetResourceIdFromStack はスタックから指定タイプのリソースを1つだけ取得する。
// 該当なし、または複数ある場合はエラー
func GetResourceIdFromStack(ctx context.Context, api CloudFormationAPI, stackName, resourceType string) (string, error) {
	ids, err := GetResourceIdsFromStack(ctx, api, stackName, resourceType)
	if err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("スタック '%s' に %s が見つかりませんでした", stackName, resourceType)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("スタック '%s' に %s が%d個あります。-i で対象を指定してください: %v", stackName, resourceType, len(ids), ids)
}
