package eks

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

type EKSAPI interface {
	DescribeNodegroup(ctx context.Context, params *awseks.DescribeNodegroupInput, optFns ...func(*awseks.Options)) (*awseks.DescribeNodegroupOutput, error)
}

// NodeGroup はEKSマネージドノードグループの情報
type NodeGroup struct {
	ClusterName string
	Name        string
	Arn         string
	Status      string
	MinSize     int32
	MaxSize     int32
	DesiredSize int32
}

// DescribeNodeGroup はノードグループを取得する。存在しない場合はnil
func DescribeNodeGroup(ctx context.Context, api EKSAPI, clusterName, nodegroupName string) (*NodeGroup, error) {
	out, err := api.DescribeNodegroup(ctx, &awseks.DescribeNodegroupInput{
		ClusterName:   aws.String(clusterName),
		NodegroupName: aws.String(nodegroupName),
	})
	var notFound *ekstypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DescribeNodegroup: %w", err)
	}

	ng := out.Nodegroup
	if ng == nil {
		return nil, nil
	}
	result := &NodeGroup{
		ClusterName: aws.ToString(ng.ClusterName),
		Name:        aws.ToString(ng.NodegroupName),
		Arn:         aws.ToString(ng.NodegroupArn),
		Status:      string(ng.Status),
	}
	if sc := ng.ScalingConfig; sc != nil {
		result.MinSize = aws.ToInt32(sc.MinSize)
		result.MaxSize = aws.ToInt32(sc.MaxSize)
		result.DesiredSize = aws.ToInt32(sc.DesiredSize)
	}
	return result, nil
}
