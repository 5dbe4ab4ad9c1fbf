package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/constructs-go/constructs/v10"
)

// AwsschedLabStackProps はAwsschedLabStackのプロパティ
type AwsschedLabStackProps struct {
	awscdk.StackProps
	Targets *TargetCounts
}

// TargetCounts はスケジュール対象リソースの作成数
type TargetCounts struct {
	Ec2Count int
	RdsCount int
}

// DefaultTargetCounts は各1つずつ作成する。
// -S でスタックから対象を特定する場合、種別ごとに1つである必要がある
func DefaultTargetCounts() *TargetCounts {
	return &TargetCounts{
		Ec2Count: 1,
		RdsCount: 1,
	}
}

// ScheduleTargets はスケジュール対象のリソース群
type ScheduleTargets struct {
	constructs.Construct
	Instances []awsec2.Instance
	Databases []awsrds.DatabaseInstance
}

// ScheduleTargetsProps はScheduleTargetsのプロパティ
type ScheduleTargetsProps struct {
	Vpc      awsec2.Vpc
	Ec2Count int
	RdsCount int
}
