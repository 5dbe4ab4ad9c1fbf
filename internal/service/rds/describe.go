package rds

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
)

type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// RdsInstance はRDSインスタンスの情報を格納する構造体
type RdsInstance struct {
	InstanceId string
	Arn        string
	Engine     string
	Status     string
	ClusterId  string
}

// DescribeRdsInstance はDBインスタンス識別子からRDSインスタンスを取得する。存在しない場合はnil
func DescribeRdsInstance(ctx context.Context, api RDSAPI, instanceID string) (*RdsInstance, error) {
	resp, err := api.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: awssdk.String(instanceID),
	})
	var notFound *types.DBInstanceNotFoundFault
	if errors.As(err, &notFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RDSインスタンスの取得に失敗: %w", err)
	}

	for _, db := range resp.DBInstances {
		if awssdk.ToString(db.DBInstanceIdentifier) != instanceID {
			continue
		}
		return &RdsInstance{
			InstanceId: awssdk.ToString(db.DBInstanceIdentifier),
			Arn:        awssdk.ToString(db.DBInstanceArn),
			Engine:     awssdk.ToString(db.Engine),
			Status:     awssdk.ToString(db.DBInstanceStatus),
			ClusterId:  awssdk.ToString(db.DBClusterIdentifier),
		}, nil
	}
	return nil, nil
}
