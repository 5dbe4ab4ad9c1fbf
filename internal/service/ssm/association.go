package ssm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"awssched/internal/service/schedule"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type SSMAPI interface {
	ListAssociations(ctx context.Context, params *awsssm.ListAssociationsInput, optFns ...func(*awsssm.Options)) (*awsssm.ListAssociationsOutput, error)
	DescribeAssociation(ctx context.Context, params *awsssm.DescribeAssociationInput, optFns ...func(*awsssm.Options)) (*awsssm.DescribeAssociationOutput, error)
	CreateAssociation(ctx context.Context, params *awsssm.CreateAssociationInput, optFns ...func(*awsssm.Options)) (*awsssm.CreateAssociationOutput, error)
	UpdateAssociation(ctx context.Context, params *awsssm.UpdateAssociationInput, optFns ...func(*awsssm.Options)) (*awsssm.UpdateAssociationOutput, error)
	DeleteAssociation(ctx context.Context, params *awsssm.DeleteAssociationInput, optFns ...func(*awsssm.Options)) (*awsssm.DeleteAssociationOutput, error)
	StartAssociationsOnce(ctx context.Context, params *awsssm.StartAssociationsOnceInput, optFns ...func(*awsssm.Options)) (*awsssm.StartAssociationsOnceOutput, error)
}

// Client はステートマネージャーのアソシエーションを操作する
type Client struct {
	api SSMAPI
}

func NewClient(api SSMAPI) *Client {
	return &Client{api: api}
}

func isAssociationNotFound(err error) bool {
	var notFound *ssmtypes.AssociationDoesNotExist
	return errors.As(err, &notFound)
}

// FindAssociation は名前が完全一致するアソシエーションを取得する。存在しない場合はnil
func (c *Client) FindAssociation(ctx context.Context, name string) (*schedule.Association, error) {
	listed, err := c.list(ctx, []ssmtypes.AssociationFilter{{
		Key:   ssmtypes.AssociationFilterKeyAssociationName,
		Value: aws.String(name),
	}})
	if err != nil {
		return nil, err
	}

	for _, a := range listed {
		if aws.ToString(a.AssociationName) != name {
			continue
		}
		// 一覧にはパラメータが含まれないため詳細を取得する
		out, err := c.api.DescribeAssociation(ctx, &awsssm.DescribeAssociationInput{
			AssociationId: a.AssociationId,
		})
		if isAssociationNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("DescribeAssociation: %w", err)
		}
		return fromDescription(out.AssociationDescription), nil
	}
	return nil, nil
}

// ListAssociations は名前がprefixで始まるアソシエーションを返す。パラメータは含まない
func (c *Client) ListAssociations(ctx context.Context, prefix string) ([]schedule.Association, error) {
	listed, err := c.list(ctx, nil)
	if err != nil {
		return nil, err
	}

	var result []schedule.Association
	for _, a := range listed {
		name := aws.ToString(a.AssociationName)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		result = append(result, schedule.Association{
			ID:                 aws.ToString(a.AssociationId),
			Name:               name,
			DocumentName:       aws.ToString(a.Name),
			ScheduleExpression: aws.ToString(a.ScheduleExpression),
			LastExecutionDate:  a.LastExecutionDate,
		})
	}
	return result, nil
}

func (c *Client) list(ctx context.Context, filters []ssmtypes.AssociationFilter) ([]ssmtypes.Association, error) {
	var associations []ssmtypes.Association
	var nextToken *string

	for {
		out, err := c.api.ListAssociations(ctx, &awsssm.ListAssociationsInput{
			AssociationFilterList: filters,
			NextToken:             nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("ListAssociations: %w", err)
		}

		associations = append(associations, out.Associations...)

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return associations, nil
}

// CreateAssociation はアソシエーションを作成する。
// 停止中などで実行されなかった回は後から実行しない
func (c *Client) CreateAssociation(ctx context.Context, in schedule.AssociationInput) (*schedule.Association, error) {
	out, err := c.api.CreateAssociation(ctx, &awsssm.CreateAssociationInput{
		Name:                    aws.String(in.DocumentName),
		AssociationName:         aws.String(in.Name),
		ScheduleExpression:      aws.String(in.ScheduleExpression),
		Parameters:              in.Parameters,
		ApplyOnlyAtCronInterval: true,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAssociation: %w", err)
	}
	return fromDescription(out.AssociationDescription), nil
}

// UpdateAssociation はIDを維持したままアソシエーションを更新する
func (c *Client) UpdateAssociation(ctx context.Context, id string, in schedule.AssociationInput) error {
	_, err := c.api.UpdateAssociation(ctx, &awsssm.UpdateAssociationInput{
		AssociationId:           aws.String(id),
		Name:                    aws.String(in.DocumentName),
		AssociationName:         aws.String(in.Name),
		ScheduleExpression:      aws.String(in.ScheduleExpression),
		Parameters:              in.Parameters,
		ApplyOnlyAtCronInterval: true,
	})
	if isAssociationNotFound(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("UpdateAssociation: %w", err)
	}
	return nil
}

// DeleteAssociation はアソシエーションを削除する
func (c *Client) DeleteAssociation(ctx context.Context, id string) error {
	_, err := c.api.DeleteAssociation(ctx, &awsssm.DeleteAssociationInput{
		AssociationId: aws.String(id),
	})
	if isAssociationNotFound(err) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("DeleteAssociation: %w", err)
	}
	return nil
}

// RunAssociation は名前で指定したアソシエーションをスケジュールを待たずに1回実行する
func (c *Client) RunAssociation(ctx context.Context, name string) (*schedule.Association, error) {
	a, err := c.FindAssociation(ctx, name)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("アソシエーション %s: %w", name, schedule.ErrNotFound)
	}

	_, err = c.api.StartAssociationsOnce(ctx, &awsssm.StartAssociationsOnceInput{
		AssociationIds: []string{a.ID},
	})
	if isAssociationNotFound(err) {
		return nil, fmt.Errorf("アソシエーション %s: %w", name, schedule.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("StartAssociationsOnce: %w", err)
	}
	return a, nil
}

func fromDescription(d *ssmtypes.AssociationDescription) *schedule.Association {
	if d == nil {
		return nil
	}
	return &schedule.Association{
		ID:                 aws.ToString(d.AssociationId),
		Name:               aws.ToString(d.AssociationName),
		DocumentName:       aws.ToString(d.Name),
		ScheduleExpression: aws.ToString(d.ScheduleExpression),
		Parameters:         d.Parameters,
		LastExecutionDate:  d.LastExecutionDate,
	}
}
