package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は削除・デタッチ対象が既に存在しないことを表す
var ErrNotFound = errors.New("対象が存在しません")

// Policy はIAMカスタマー管理ポリシー
type Policy struct {
	Name string
	Arn  string
}

// Role はIAMロール
type Role struct {
	Name               string
	Arn                string
	AttachedPolicyArns []string
}

// Association はSSMステートマネージャーのアソシエーション
type Association struct {
	ID                 string
	Name               string
	DocumentName       string
	ScheduleExpression string
	Parameters         map[string][]string
	LastExecutionDate  *time.Time
}

// AssociationInput はアソシエーションの作成・更新内容
type AssociationInput struct {
	Name               string
	DocumentName       string
	ScheduleExpression string
	Parameters         map[string][]string
}

// Accessor はリモート状態の参照・変更を行う。
// Find系は対象が存在しない場合に (nil, nil) を返す。
// Delete/Detach系は対象が存在しない場合に ErrNotFound を返す
type Accessor interface {
	AssociationLister

	FindPolicy(ctx context.Context, name string) (*Policy, error)
	CreatePolicy(ctx context.Context, name, document string) (*Policy, error)
	DeletePolicy(ctx context.Context, arn string) error

	FindRole(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, name, trustDocument string) (*Role, error)
	AttachPolicy(ctx context.Context, roleName, policyArn string) error
	DetachPolicy(ctx context.Context, roleName, policyArn string) error
	DeleteRole(ctx context.Context, name string) error

	FindAssociation(ctx context.Context, name string) (*Association, error)
	CreateAssociation(ctx context.Context, in AssociationInput) (*Association, error)
	UpdateAssociation(ctx context.Context, id string, in AssociationInput) error
	DeleteAssociation(ctx context.Context, id string) error
}

// AssociationLister はアソシエーションの一覧取得を行う。
// prefixが空の場合は全件を返す
type AssociationLister interface {
	ListAssociations(ctx context.Context, prefix string) ([]Association, error)
}
