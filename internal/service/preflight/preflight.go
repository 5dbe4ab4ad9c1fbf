package preflight

import (
	"context"
	"fmt"
	"io"

	"awssched/internal/service/common"
	"awssched/internal/service/ec2"
	"awssched/internal/service/eks"
	"awssched/internal/service/rds"
	"awssched/internal/service/region"
	"awssched/internal/service/schedule"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// 事前チェックの各ステップ名
const (
	StepCredentials = "credentials"
	StepRegion      = "region"
	StepResource    = "resource"
	StepNaming      = "naming"
)

// Checker は変更前にプロファイル・リージョン・対象リソースを確認する
type Checker struct {
	STS        STSAPI
	Regions    region.EC2API
	Instances  ec2.EC2API
	Databases  rds.RDSAPI
	NodeGroups eks.EKSAPI

	Out    io.Writer
	Logger zerolog.Logger
}

// Identity は認証情報から得たアカウント情報
type Identity struct {
	AccountID string
	Arn       string
	Partition string
}

// Run は全てのチェックを順に行い、最初に失敗した時点でPreflightErrorを返す
func (c *Checker) Run(ctx context.Context, desc schedule.Descriptor) (schedule.Target, error) {
	c.printf("%s 事前チェック中: %s\n", common.SearchIcon, desc)

	if err := schedule.ValidateNames(desc); err != nil {
		return schedule.Target{}, schedule.NewPreflightError(StepNaming, err)
	}

	identity, err := c.CheckIdentity(ctx)
	if err != nil {
		return schedule.Target{}, schedule.NewPreflightError(StepCredentials, err)
	}
	c.Logger.Debug().Str("account", identity.AccountID).Str("arn", identity.Arn).Msg("caller identity")

	if err := region.CheckRegion(ctx, c.Regions, desc.Region()); err != nil {
		return schedule.Target{}, schedule.NewPreflightError(StepRegion, err)
	}

	resourceArn, err := c.CheckResource(ctx, desc, identity)
	if err != nil {
		return schedule.Target{}, schedule.NewPreflightError(StepResource, err)
	}
	c.Logger.Debug().Str("resource", resourceArn).Msg("resource found")
	c.printf("%s 事前チェック完了 (アカウント: %s)\n", common.SuccessIcon, identity.AccountID)

	return schedule.Target{
		Descriptor:  desc,
		Partition:   identity.Partition,
		AccountID:   identity.AccountID,
		ResourceArn: resourceArn,
	}, nil
}

// CheckIdentity は認証情報が有効かを確認し、アカウントIDとパーティションを返す
func (c *Checker) CheckIdentity(ctx context.Context) (Identity, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("認証情報の確認に失敗: %w", err)
	}

	identity := Identity{
		AccountID: aws.ToString(out.Account),
		Arn:       aws.ToString(out.Arn),
		Partition: "aws",
	}
	if parsed, err := arn.Parse(identity.Arn); err == nil {
		identity.Partition = parsed.Partition
	}
	if identity.AccountID == "" {
		return Identity{}, fmt.Errorf("アカウントIDを取得できませんでした")
	}
	return identity, nil
}

// CheckResource は対象リソースの存在を確認し、ポリシーに使用するARNを返す
func (c *Checker) CheckResource(ctx context.Context, desc schedule.Descriptor, identity Identity) (string, error) {
	switch desc.Kind() {
	case schedule.KindInstance:
		instance, err := ec2.DescribeInstance(ctx, c.Instances, desc.ResourceID())
		if err != nil {
			return "", err
		}
		if instance == nil {
			return "", fmt.Errorf("EC2インスタンス %s が見つかりません", desc.ResourceID())
		}
		return schedule.InstanceArn(identity.Partition, desc.Region(), identity.AccountID, instance.InstanceId), nil

	case schedule.KindDatabase:
		db, err := rds.DescribeRdsInstance(ctx, c.Databases, desc.ResourceID())
		if err != nil {
			return "", err
		}
		if db == nil {
			return "", fmt.Errorf("RDSインスタンス %s が見つかりません", desc.ResourceID())
		}
		if db.ClusterId != "" {
			c.printf("%s %s はAuroraクラスター %s のメンバーです。インスタンス単位の停止はできない場合があります\n",
				common.WarningIcon, db.InstanceId, db.ClusterId)
		}
		return db.Arn, nil

	case schedule.KindNodeGroup:
		ng, err := eks.DescribeNodeGroup(ctx, c.NodeGroups, desc.Cluster(), desc.ResourceID())
		if err != nil {
			return "", err
		}
		if ng == nil {
			return "", fmt.Errorf("ノードグループ %s/%s が見つかりません", desc.Cluster(), desc.ResourceID())
		}
		return ng.Arn, nil
	}
	return "", fmt.Errorf("未対応のリソース種別です: %s", desc.Kind())
}

func (c *Checker) printf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}
