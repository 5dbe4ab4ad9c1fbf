package remote

import (
	"awssched/internal/aws"
	"awssched/internal/service/iam"
	"awssched/internal/service/schedule"
	"awssched/internal/service/ssm"
)

type (
	identityClient    = iam.Client
	associationClient = ssm.Client
)

// Accessor はIAMとSSMのクライアントを束ねてschedule.Accessorを実装する
type Accessor struct {
	*identityClient
	*associationClient
}

var _ schedule.Accessor = (*Accessor)(nil)

// New はAWSクライアント群からAccessorを作成する
func New(clients *aws.Clients, partition, accountID string) *Accessor {
	return &Accessor{
		identityClient:    iam.NewClient(clients.Iam(), partition, accountID),
		associationClient: ssm.NewClient(clients.Ssm()),
	}
}
