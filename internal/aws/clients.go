package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients はAWS設定と各サービスクライアントを管理
type Clients struct {
	cfg aws.Config

	// 遅延初期化されるクライアント群
	iam *iam.Client
	ssm *ssm.Client
	sts *sts.Client
	ec2 *ec2.Client
	rds *rds.Client
	eks *eks.Client
	cfn *cloudformation.Client
}

// NewAwsClients は認証情報からAWS設定を読み込んでクライアント管理構造体を作成
func NewAwsClients(ctx context.Context, awsCtx Context) (*Clients, error) {
	cfg, err := LoadAwsConfig(ctx, awsCtx)
	if err != nil {
		return nil, err
	}

	return &Clients{cfg: cfg}, nil
}

// NewClientsFromConfig は読み込み済みの設定からクライアント管理構造体を作成
func NewClientsFromConfig(cfg aws.Config) *Clients {
	return &Clients{cfg: cfg}
}

// Region は設定済みのリージョンを返す
func (c *Clients) Region() string {
	return c.cfg.Region
}

// Iam は遅延初期化でIAMクライアントを取得
func (c *Clients) Iam() *iam.Client {
	if c.iam == nil {
		c.iam = iam.NewFromConfig(c.cfg)
	}
	return c.iam
}

// Ssm は遅延初期化でSSMクライアントを取得
func (c *Clients) Ssm() *ssm.Client {
	if c.ssm == nil {
		c.ssm = ssm.NewFromConfig(c.cfg)
	}
	return c.ssm
}

// Sts は遅延初期化でSTSクライアントを取得
func (c *Clients) Sts() *sts.Client {
	if c.sts == nil {
		c.sts = sts.NewFromConfig(c.cfg)
	}
	return c.sts
}

// Ec2 は遅延初期化でEC2クライアントを取得
func (c *Clients) Ec2() *ec2.Client {
	if c.ec2 == nil {
		c.ec2 = ec2.NewFromConfig(c.cfg)
	}
	return c.ec2
}

// Rds は遅延初期化でRDSクライアントを取得
func (c *Clients) Rds() *rds.Client {
	if c.rds == nil {
		c.rds = rds.NewFromConfig(c.cfg)
	}
	return c.rds
}

// Eks は遅延初期化でEKSクライアントを取得
func (c *Clients) Eks() *eks.Client {
	if c.eks == nil {
		c.eks = eks.NewFromConfig(c.cfg)
	}
	return c.eks
}

// Cfn は遅延初期化でCloudFormationクライアントを取得
func (c *Clients) Cfn() *cloudformation.Client {
	if c.cfn == nil {
		c.cfn = cloudformation.NewFromConfig(c.cfg)
	}
	return c.cfn
}
