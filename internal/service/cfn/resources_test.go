package cfn

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCloudFormationAPI struct {
	describeStackResourcesFunc func(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error)
}

func (m *mockCloudFormationAPI) DescribeStackResources(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error) {
	return m.describeStackResourcesFunc(ctx, params, optFns...)
}

func stackMock() *mockCloudFormationAPI {
	return &mockCloudFormationAPI{
		describeStackResourcesFunc: func(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error) {
			if awssdk.ToString(params.StackName) == "empty" {
				return &cloudformation.DescribeStackResourcesOutput{}, nil
			}
			return &cloudformation.DescribeStackResourcesOutput{StackResources: []types.StackResource{
				{ResourceType: awssdk.String(ResourceTypeEc2Instance), PhysicalResourceId: awssdk.String("i-0aaa")},
				{ResourceType: awssdk.String(ResourceTypeEc2Instance), PhysicalResourceId: awssdk.String("i-0bbb")},
				{ResourceType: awssdk.String(ResourceTypeRdsInstance), PhysicalResourceId: awssdk.String("db1")},
				{ResourceType: awssdk.String(ResourceTypeEksNodegroup), PhysicalResourceId: awssdk.String("prod/workers")},
				{ResourceType: awssdk.String("AWS::S3::Bucket"), PhysicalResourceId: awssdk.String("bucket")},
			}}, nil
		},
	}
}

func TestGetResourceIdsFromStack(t *testing.T) {
	ids, err := GetResourceIdsFromStack(context.Background(), stackMock(), "app", ResourceTypeEc2Instance)
	require.NoError(t, err)
	assert.Equal(t, []string{"i-0aaa", "i-0bbb"}, ids)
}

func TestGetResourceIdFromStack(t *testing.T) {
	id, err := GetResourceIdFromStack(context.Background(), stackMock(), "app", ResourceTypeRdsInstance)
	require.NoError(t, err)
	assert.Equal(t, "db1", id)

	_, err = GetResourceIdFromStack(context.Background(), stackMock(), "app", ResourceTypeEc2Instance)
	assert.ErrorContains(t, err, "2個")

	_, err = GetResourceIdFromStack(context.Background(), stackMock(), "app", "AWS::Lambda::Function")
	assert.ErrorContains(t, err, "見つかりませんでした")

	_, err = GetResourceIdFromStack(context.Background(), stackMock(), "empty", ResourceTypeRdsInstance)
	assert.Error(t, err)
}

func TestGetStackResources_Error(t *testing.T) {
	api := &mockCloudFormationAPI{
		describeStackResourcesFunc: func(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error) {
			return nil, errors.New("Stack with id app does not exist")
		},
	}
	_, err := GetStackResources(context.Background(), api, "app")
	assert.ErrorContains(t, err, "CloudFormationスタックのリソース取得に失敗")
}
