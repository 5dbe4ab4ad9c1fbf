package schedule

import (
	"fmt"
	"strconv"
)

// DesiredAssociation は1曜日・1アクション分の希望するアソシエーション
type DesiredAssociation struct {
	Action Action
	Day    Weekday
	AssociationInput
}

// Desired は1リソース分の希望状態
type Desired struct {
	Target         Target
	PolicyName     string
	PolicyArn      string
	PolicyDocument string
	RoleName       string
	RoleArn        string
	TrustDocument  string
	Associations   []DesiredAssociation
}

// Prefixes はこのリソースが所有するアソシエーション名の接頭辞を返す
func (d Desired) Prefixes() []string {
	desc := d.Target.Descriptor
	actions := desc.Kind().Actions()
	prefixes := make([]string, 0, len(actions))
	for _, a := range actions {
		prefixes = append(prefixes, AssociationPrefix(desc.Kind(), desc.Identifier(), a))
	}
	return prefixes
}

// Owns は名前がこのリソースのアソシエーションかどうかを判定する
func (d Desired) Owns(name string) bool {
	desc := d.Target.Descriptor
	for _, a := range desc.Kind().Actions() {
		for _, day := range AllWeekdays {
			if AssociationName(desc.Kind(), desc.Identifier(), a, day) == name {
				return true
			}
		}
	}
	return false
}

// BuildDesired はリソースとスケジュールから希望状態を組み立てる。
// アソシエーションは曜日順、各曜日で起動側・停止側の順に並ぶ
func BuildDesired(target Target, spec Spec, docs Documents) (Desired, error) {
	desc := target.Descriptor
	if err := spec.Validate(desc.Kind()); err != nil {
		return Desired{}, err
	}

	d, err := newIdentity(target)
	if err != nil {
		return Desired{}, err
	}
	if d.PolicyDocument, err = PolicyDocument(desc.Kind(), target.ResourceArn); err != nil {
		return Desired{}, err
	}
	if d.TrustDocument, err = TrustDocument(); err != nil {
		return Desired{}, err
	}

	actions := desc.Kind().Actions()
	hours := [2]int{spec.StartHour, spec.StopHour}
	for _, day := range spec.Days {
		for i, action := range actions {
			doc, err := docs.Lookup(desc.Kind(), action)
			if err != nil {
				return Desired{}, err
			}
			d.Associations = append(d.Associations, DesiredAssociation{
				Action: action,
				Day:    day,
				AssociationInput: AssociationInput{
					Name:               AssociationName(desc.Kind(), desc.Identifier(), action, day),
					DocumentName:       doc,
					ScheduleExpression: CronExpression(hours[i], day),
					Parameters:         associationParameters(desc, action, spec.Scale, d.RoleArn),
				},
			})
		}
	}
	return d, nil
}

// BuildTeardown は削除対象となる名前だけを持つ状態を組み立てる
func BuildTeardown(target Target, days []Weekday) (Desired, error) {
	if len(days) == 0 {
		return Desired{}, fmt.Errorf("曜日が指定されていません")
	}
	d, err := newIdentity(target)
	if err != nil {
		return Desired{}, err
	}

	desc := target.Descriptor
	for _, day := range days {
		for _, action := range desc.Kind().Actions() {
			d.Associations = append(d.Associations, DesiredAssociation{
				Action: action,
				Day:    day,
				AssociationInput: AssociationInput{
					Name: AssociationName(desc.Kind(), desc.Identifier(), action, day),
				},
			})
		}
	}
	return d, nil
}

func newIdentity(target Target) (Desired, error) {
	desc := target.Descriptor
	if err := ValidateNames(desc); err != nil {
		return Desired{}, err
	}
	policyName := PolicyName(desc.Kind(), desc.Identifier())
	roleName := RoleName(desc.Kind(), desc.Identifier())
	return Desired{
		Target:     target,
		PolicyName: policyName,
		PolicyArn:  PolicyArn(target.Partition, target.AccountID, policyName),
		RoleName:   roleName,
		RoleArn:    RoleArn(target.Partition, target.AccountID, roleName),
	}, nil
}

func associationParameters(desc Descriptor, action Action, scale *ScaleSpec, roleArn string) map[string][]string {
	params := map[string][]string{
		AssumeRoleParameter: {roleArn},
	}

	if desc.Kind() != KindNodeGroup {
		params["InstanceId"] = []string{desc.ResourceID()}
		return params
	}

	size := DefaultScaleDown
	if scale != nil {
		size = scale.Down
		if action == ActionScaleUp {
			size = scale.Up
		}
	}
	params["ClusterName"] = []string{desc.Cluster()}
	params["NodegroupName"] = []string{desc.ResourceID()}
	params["MinSize"] = []string{strconv.Itoa(int(size.Min))}
	params["MaxSize"] = []string{strconv.Itoa(int(size.Max))}
	params["DesiredSize"] = []string{strconv.Itoa(int(size.Desired))}
	return params
}
