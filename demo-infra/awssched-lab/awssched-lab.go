package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// NewAwsschedLabStack はawsschedの動作確認用にEC2とRDSを作成するスタック
func NewAwsschedLabStack(scope constructs.Construct, id string, props *AwsschedLabStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	counts := DefaultTargetCounts()
	if props != nil && props.Targets != nil {
		counts = props.Targets
	}

	// NATゲートウェイなしで起動できるようプライベートサブネットは分離タイプにする
	vpc := awsec2.NewVpc(stack, jsii.String("Vpc"), &awsec2.VpcProps{
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(0),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				Name:       jsii.String("public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
				CidrMask:   jsii.Number(24),
			},
			{
				Name:       jsii.String("isolated"),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
				CidrMask:   jsii.Number(24),
			},
		},
	})

	NewScheduleTargets(stack, "Targets", &ScheduleTargetsProps{
		Vpc:      vpc,
		Ec2Count: counts.Ec2Count,
		RdsCount: counts.RdsCount,
	})

	awscdk.NewCfnOutput(stack, jsii.String("ScheduleCommand"), &awscdk.CfnOutputProps{
		Value: jsii.String(fmt.Sprintf("awssched schedule apply -k ec2 -S %s --start 0 --stop 10", id)),
	})

	return stack
}

// NewScheduleTargets はスケジュール対象のEC2インスタンスとRDSインスタンスを作成する
func NewScheduleTargets(scope constructs.Construct, id string, props *ScheduleTargetsProps) *ScheduleTargets {
	construct := constructs.NewConstruct(scope, &id)
	targets := &ScheduleTargets{Construct: construct}

	for i := 0; i < props.Ec2Count; i++ {
		name := fmt.Sprintf("Instance%d", i+1)
		instance := awsec2.NewInstance(construct, jsii.String(name), &awsec2.InstanceProps{
			Vpc:          props.Vpc,
			InstanceType: awsec2.InstanceType_Of(awsec2.InstanceClass_BURSTABLE4_GRAVITON, awsec2.InstanceSize_MICRO),
			MachineImage: awsec2.MachineImage_LatestAmazonLinux2023(&awsec2.AmazonLinux2023ImageSsmParameterProps{
				CpuType: awsec2.AmazonLinuxCpuType_ARM_64,
			}),
			VpcSubnets: &awsec2.SubnetSelection{
				SubnetType: awsec2.SubnetType_PUBLIC,
			},
			SsmSessionPermissions: jsii.Bool(true),
		})
		targets.Instances = append(targets.Instances, instance)

		awscdk.NewCfnOutput(scope, jsii.String(name+"Id"), &awscdk.CfnOutputProps{
			Value: instance.InstanceId(),
		})
	}

	for i := 0; i < props.RdsCount; i++ {
		name := fmt.Sprintf("Database%d", i+1)
		db := awsrds.NewDatabaseInstance(construct, jsii.String(name), &awsrds.DatabaseInstanceProps{
			Engine: awsrds.DatabaseInstanceEngine_Postgres(&awsrds.PostgresInstanceEngineProps{
				Version: awsrds.PostgresEngineVersion_VER_16_4(),
			}),
			InstanceType: awsec2.InstanceType_Of(awsec2.InstanceClass_T4G, awsec2.InstanceSize_MICRO),
			Vpc:          props.Vpc,
			VpcSubnets: &awsec2.SubnetSelection{
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
			},
			AllocatedStorage:       jsii.Number(20),
			StorageType:            awsrds.StorageType_GP3,
			RemovalPolicy:          awscdk.RemovalPolicy_DESTROY,
			DeletionProtection:     jsii.Bool(false),
			DeleteAutomatedBackups: jsii.Bool(true),
			StorageEncrypted:       jsii.Bool(true),
		})
		targets.Databases = append(targets.Databases, db)

		awscdk.NewCfnOutput(scope, jsii.String(name+"Identifier"), &awscdk.CfnOutputProps{
			Value: db.InstanceIdentifier(),
		})
	}

	return targets
}

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	NewAwsschedLabStack(app, "AwsschedLab", &AwsschedLabStackProps{
		StackProps: awscdk.StackProps{Env: nil},
		Targets:    DefaultTargetCounts(),
	})

	app.Synth(nil)
}
