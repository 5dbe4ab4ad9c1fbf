package schedule

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// SSMオートメーションが引き受けるロールの信頼先
const AutomationServicePrincipal = "ssm.amazonaws.com"

// AssumeRoleParameter はオートメーションドキュメントに渡すロールARNのパラメータ名
const AssumeRoleParameter = "AutomationAssumeRole"

// Documents は種別・アクションごとのオートメーションドキュメント名
type Documents map[Kind]map[Action]string

// DefaultDocuments はAWS管理のオートメーションドキュメントを返す
func DefaultDocuments() Documents {
	return Documents{
		KindInstance: {
			ActionStart: "AWS-StartEC2Instance",
			ActionStop:  "AWS-StopEC2Instance",
		},
		KindDatabase: {
			ActionStart: "AWS-StartRdsInstance",
			ActionStop:  "AWS-StopRdsInstance",
		},
		KindNodeGroup: {
			ActionScaleUp:   "AWS-UpdateEKSManagedNodegroupScaling",
			ActionScaleDown: "AWS-UpdateEKSManagedNodegroupScaling",
		},
	}
}

// Lookup はドキュメント名を返す
func (d Documents) Lookup(kind Kind, action Action) (string, error) {
	name := d[kind][action]
	if name == "" {
		return "", fmt.Errorf("%s の %s に対応するドキュメントが設定されていません", kind, action)
	}
	return name, nil
}

// Override は設定ファイルの documents.<kind>.<action> を反映したコピーを返す。
// キーの大文字小文字は区別しない
func (d Documents) Override(overrides map[string]map[string]string) (Documents, error) {
	result := make(Documents, len(d))
	for k, actions := range d {
		result[k] = maps.Clone(actions)
	}

	for kindKey, actions := range overrides {
		kind, err := ParseKind(kindKey)
		if err != nil {
			return nil, err
		}
		for actionKey, name := range actions {
			action, ok := findAction(kind, actionKey)
			if !ok {
				return nil, fmt.Errorf("%s に未対応のアクションです: %s", kind, actionKey)
			}
			if name == "" {
				continue
			}
			result[kind][action] = name
		}
	}
	return result, nil
}

func findAction(kind Kind, key string) (Action, bool) {
	for _, a := range kind.Actions() {
		if strings.EqualFold(string(a), key) {
			return a, true
		}
	}
	return "", false
}

// resourceActions は種別ごとに許可するAPIアクション
var resourceActions = map[Kind][]string{
	KindInstance: {
		"ec2:DescribeInstances",
		"ec2:DescribeInstanceStatus",
		"ec2:StartInstances",
		"ec2:StopInstances",
		"ec2:RebootInstances",
	},
	KindDatabase: {
		"rds:DescribeDBInstances",
		"rds:StartDBInstance",
		"rds:StopDBInstance",
		"rds:RebootDBInstance",
	},
	KindNodeGroup: {
		"eks:DescribeNodegroup",
		"eks:UpdateNodegroupConfig",
	},
}

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

// PolicyDocument は1つのリソースARNに限定した最小権限ポリシーを返す
func PolicyDocument(kind Kind, resourceArn string) (string, error) {
	actions, ok := resourceActions[kind]
	if !ok {
		return "", fmt.Errorf("未対応のリソース種別です: %s", kind)
	}
	if resourceArn == "" || strings.Contains(resourceArn, "*") {
		return "", fmt.Errorf("ポリシーのリソースARNが不正です: %q", resourceArn)
	}
	return marshalDocument(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:   "Allow",
			Action:   actions,
			Resource: resourceArn,
		}},
	})
}

// TrustDocument はSSMオートメーションに引き受けを許可する信頼ポリシーを返す
func TrustDocument() (string, error) {
	return marshalDocument(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"Service": AutomationServicePrincipal},
		}},
	})
}

func marshalDocument(doc policyDocument) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("ポリシードキュメントの生成に失敗: %w", err)
	}
	return string(b), nil
}

// RoleArn はロール名からARNを組み立てる
func RoleArn(partition, accountID, roleName string) string {
	return iamArn(partition, accountID, "role/"+roleName)
}

// PolicyArn はカスタマー管理ポリシー名からARNを組み立てる
func PolicyArn(partition, accountID, policyName string) string {
	return iamArn(partition, accountID, "policy/"+policyName)
}

func iamArn(partition, accountID, resource string) string {
	if partition == "" {
		partition = "aws"
	}
	return arn.ARN{
		Partition: partition,
		Service:   "iam",
		AccountID: accountID,
		Resource:  resource,
	}.String()
}

// InstanceArn はEC2インスタンスのARNを組み立てる
func InstanceArn(partition, region, accountID, instanceID string) string {
	if partition == "" {
		partition = "aws"
	}
	return arn.ARN{
		Partition: partition,
		Service:   "ec2",
		Region:    region,
		AccountID: accountID,
		Resource:  "instance/" + instanceID,
	}.String()
}
