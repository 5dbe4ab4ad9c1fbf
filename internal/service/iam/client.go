package iam

import (
	"context"
	"errors"
	"fmt"

	"awssched/internal/service/schedule"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type IAMAPI interface {
	GetPolicy(ctx context.Context, params *awsiam.GetPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetPolicyOutput, error)
	CreatePolicy(ctx context.Context, params *awsiam.CreatePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreatePolicyOutput, error)
	DeletePolicy(ctx context.Context, params *awsiam.DeletePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeletePolicyOutput, error)
	ListPolicyVersions(ctx context.Context, params *awsiam.ListPolicyVersionsInput, optFns ...func(*awsiam.Options)) (*awsiam.ListPolicyVersionsOutput, error)
	DeletePolicyVersion(ctx context.Context, params *awsiam.DeletePolicyVersionInput, optFns ...func(*awsiam.Options)) (*awsiam.DeletePolicyVersionOutput, error)
	GetRole(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error)
	DeleteRole(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *awsiam.AttachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *awsiam.DetachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error)
}

// Client はスケジュール用のIAMポリシー・ロールを操作する
type Client struct {
	api       IAMAPI
	partition string
	accountID string
}

// NewClient は新しいClientを作成。ポリシーARNの組み立てにアカウントIDを使用する
func NewClient(api IAMAPI, partition, accountID string) *Client {
	return &Client{api: api, partition: partition, accountID: accountID}
}

const description = "Managed by awssched"

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse)
}

// FindPolicy はポリシー名からカスタマー管理ポリシーを取得する。存在しない場合はnil
func (c *Client) FindPolicy(ctx context.Context, name string) (*schedule.Policy, error) {
	out, err := c.api.GetPolicy(ctx, &awsiam.GetPolicyInput{
		PolicyArn: aws.String(schedule.PolicyArn(c.partition, c.accountID, name)),
	})
	if isNoSuchEntity(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetPolicy: %w", err)
	}
	return &schedule.Policy{
		Name: aws.ToString(out.Policy.PolicyName),
		Arn:  aws.ToString(out.Policy.Arn),
	}, nil
}

// CreatePolicy はポリシーを作成する
func (c *Client) CreatePolicy(ctx context.Context, name, document string) (*schedule.Policy, error) {
	out, err := c.api.CreatePolicy(ctx, &awsiam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(document),
		Description:    aws.String(description),
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePolicy: %w", err)
	}
	return &schedule.Policy{
		Name: aws.ToString(out.Policy.PolicyName),
		Arn:  aws.ToString(out.Policy.Arn),
	}, nil
}

// DeletePolicy は非デフォルトバージョンを削除してからポリシーを削除する
func (c *Client) DeletePolicy(ctx context.Context, policyArn string) error {
	versions, err := c.api.ListPolicyVersions(ctx, &awsiam.ListPolicyVersionsInput{
		PolicyArn: aws.String(policyArn),
	})
	if isNoSuchEntity(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ListPolicyVersions: %w", err)
	}

	for _, v := range versions.Versions {
		if v.IsDefaultVersion {
			continue
		}
		_, err := c.api.DeletePolicyVersion(ctx, &awsiam.DeletePolicyVersionInput{
			PolicyArn: aws.String(policyArn),
			VersionId: v.VersionId,
		})
		if err != nil && !isNoSuchEntity(err) {
			return fmt.Errorf("DeletePolicyVersion: %w", err)
		}
	}

	_, err = c.api.DeletePolicy(ctx, &awsiam.DeletePolicyInput{PolicyArn: aws.String(policyArn)})
	if isNoSuchEntity(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("DeletePolicy: %w", err)
	}
	return nil
}

// FindRole はロールとアタッチ済みの管理ポリシーを取得する。存在しない場合はnil
func (c *Client) FindRole(ctx context.Context, name string) (*schedule.Role, error) {
	out, err := c.api.GetRole(ctx, &awsiam.GetRoleInput{RoleName: aws.String(name)})
	if isNoSuchEntity(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetRole: %w", err)
	}

	role := &schedule.Role{
		Name: aws.ToString(out.Role.RoleName),
		Arn:  aws.ToString(out.Role.Arn),
	}

	var marker *string
	for {
		attached, err := c.api.ListAttachedRolePolicies(ctx, &awsiam.ListAttachedRolePoliciesInput{
			RoleName: aws.String(name),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListAttachedRolePolicies: %w", err)
		}
		for _, p := range attached.AttachedPolicies {
			role.AttachedPolicyArns = append(role.AttachedPolicyArns, aws.ToString(p.PolicyArn))
		}
		if !attached.IsTruncated {
			break
		}
		marker = attached.Marker
	}
	return role, nil
}

// CreateRole は信頼ポリシーを指定してロールを作成する
func (c *Client) CreateRole(ctx context.Context, name, trustDocument string) (*schedule.Role, error) {
	out, err := c.api.CreateRole(ctx, &awsiam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustDocument),
		Description:              aws.String(description),
	})
	if err != nil {
		return nil, fmt.Errorf("CreateRole: %w", err)
	}
	return &schedule.Role{
		Name: aws.ToString(out.Role.RoleName),
		Arn:  aws.ToString(out.Role.Arn),
	}, nil
}

// AttachPolicy はロールにポリシーをアタッチする
func (c *Client) AttachPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := c.api.AttachRolePolicy(ctx, &awsiam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return fmt.Errorf("AttachRolePolicy: %w", err)
	}
	return nil
}

// DetachPolicy はロールからポリシーをデタッチする
func (c *Client) DetachPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := c.api.DetachRolePolicy(ctx, &awsiam.DetachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if isNoSuchEntity(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("DetachRolePolicy: %w", err)
	}
	return nil
}

// DeleteRole はロールを削除する
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	_, err := c.api.DeleteRole(ctx, &awsiam.DeleteRoleInput{RoleName: aws.String(name)})
	if isNoSuchEntity(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("DeleteRole: %w", err)
	}
	return nil
}
