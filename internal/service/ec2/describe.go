package ec2

import (
	"context"
	"fmt"

	"awssched/internal/service/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Instance はEC2インスタンスの情報を格納する構造体
type Instance struct {
	InstanceId   string
	InstanceName string
	State        string
}

// DescribeInstance はインスタンスIDからEC2インスタンスを取得する。
// 存在しない、または終了済みの場合はnilを返す
func DescribeInstance(ctx context.Context, api EC2API, instanceID string) (*Instance, error) {
	result, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if common.IsAPIErrorCode(err, "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("EC2インスタンスの取得に失敗: %w", err)
	}

	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) != instanceID {
				continue
			}
			// 終了済みのインスタンスは除外
			if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
				return nil, nil
			}
			return toInstance(instance), nil
		}
	}
	return nil, nil
}

func toInstance(instance types.Instance) *Instance {
	// インスタンス名を取得（Nameタグから）
	instanceName := "（名前なし）"
	for _, tag := range instance.Tags {
		if aws.ToString(tag.Key) == "Name" && tag.Value != nil {
			instanceName = *tag.Value
			break
		}
	}

	state := ""
	if instance.State != nil {
		state = string(instance.State.Name)
	}
	return &Instance{
		InstanceId:   aws.ToString(instance.InstanceId),
		InstanceName: instanceName,
		State:        state,
	}
}
