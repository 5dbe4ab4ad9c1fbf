package schedule

import (
	"fmt"
	"unicode/utf8"
)

// AWS側の名前長の上限
const (
	MaxRoleNameLength        = 64
	MaxPolicyNameLength      = 128
	MinAssociationNameLength = 3
	MaxAssociationNameLength = 128
)

// AssociationName はアソシエーション名を返す。例: StartDatabase_db1_MON
func AssociationName(kind Kind, identifier string, action Action, day Weekday) string {
	return fmt.Sprintf("%s%s_%s_%s", action, kind, identifier, day)
}

// PolicyName はリソース専用のIAMポリシー名を返す
func PolicyName(kind Kind, identifier string) string {
	return fmt.Sprintf("%sStartStopPolicy_%s", kind, identifier)
}

// RoleName はリソース専用のIAMロール名を返す
func RoleName(kind Kind, identifier string) string {
	return fmt.Sprintf("%sStartStopRole_%s", kind, identifier)
}

// AssociationPrefix は指定アクションのアソシエーション名の共通接頭辞を返す
func AssociationPrefix(kind Kind, identifier string, action Action) string {
	return fmt.Sprintf("%s%s_%s_", action, kind, identifier)
}

// CronExpression はSSMのcron式を返す。分は常に0、時刻はUTC
func CronExpression(hour int, day Weekday) string {
	return fmt.Sprintf("cron(0 %d ? * %s *)", hour, day)
}

// ValidateNames は生成される全ての名前がAWSの長さ制限に収まるか確認する。
// 名前を切り詰めると別リソースと衝突しうるため、超過時はエラーとする
func ValidateNames(d Descriptor) error {
	id := d.Identifier()

	if name := RoleName(d.Kind(), id); utf8.RuneCountInString(name) > MaxRoleNameLength {
		return fmt.Errorf("ロール名が%d文字を超えています: %s", MaxRoleNameLength, name)
	}
	if name := PolicyName(d.Kind(), id); utf8.RuneCountInString(name) > MaxPolicyNameLength {
		return fmt.Errorf("ポリシー名が%d文字を超えています: %s", MaxPolicyNameLength, name)
	}
	for _, action := range d.Kind().Actions() {
		for _, day := range AllWeekdays {
			name := AssociationName(d.Kind(), id, action, day)
			n := utf8.RuneCountInString(name)
			if n < MinAssociationNameLength || n > MaxAssociationNameLength {
				return fmt.Errorf("アソシエーション名が%d〜%d文字の範囲外です: %s", MinAssociationNameLength, MaxAssociationNameLength, name)
			}
		}
	}
	return nil
}
