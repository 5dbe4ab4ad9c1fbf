package schedule

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind はスケジュール対象リソースの種別
type Kind string

const (
	KindInstance  Kind = "Instance"  // EC2インスタンス
	KindDatabase  Kind = "Database"  // RDSインスタンス
	KindNodeGroup Kind = "NodeGroup" // EKSマネージドノードグループ
)

// AllKinds は対応している全種別
var AllKinds = []Kind{KindInstance, KindDatabase, KindNodeGroup}

// ParseKind はCLIで指定された種別文字列をKindに変換する
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ec2", "instance":
		return KindInstance, nil
	case "rds", "database", "db":
		return KindDatabase, nil
	case "eks", "nodegroup", "node-group", "ng":
		return KindNodeGroup, nil
	}
	return "", fmt.Errorf("未対応のリソース種別です: %s (ec2|rds|eks)", s)
}

// Action はアソシエーションが実行する操作
type Action string

const (
	ActionStart     Action = "Start"
	ActionStop      Action = "Stop"
	ActionScaleUp   Action = "ScaleUp"
	ActionScaleDown Action = "ScaleDown"
)

// Actions は種別ごとの [起動側, 停止側] のアクションを返す
func (k Kind) Actions() [2]Action {
	if k == KindNodeGroup {
		return [2]Action{ActionScaleUp, ActionScaleDown}
	}
	return [2]Action{ActionStart, ActionStop}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Descriptor はスケジュール対象となる1つのリソースを表す。生成後は変更できない
type Descriptor struct {
	kind       Kind
	resourceID string
	cluster    string
	region     string
	profile    string
}

// NewDescriptor はDescriptorを生成する。NodeGroupの場合はclusterが必須
func NewDescriptor(kind Kind, resourceID, cluster, region, profile string) (Descriptor, error) {
	if resourceID == "" {
		return Descriptor{}, fmt.Errorf("リソース識別子が指定されていません")
	}
	if !identifierPattern.MatchString(resourceID) {
		return Descriptor{}, fmt.Errorf("リソース識別子に使用できない文字が含まれています: %s", resourceID)
	}

	switch kind {
	case KindInstance, KindDatabase:
		if cluster != "" {
			return Descriptor{}, fmt.Errorf("クラスター名は %s では指定できません", kind)
		}
	case KindNodeGroup:
		if cluster == "" {
			return Descriptor{}, fmt.Errorf("NodeGroupにはクラスター名が必要です")
		}
		if !identifierPattern.MatchString(cluster) {
			return Descriptor{}, fmt.Errorf("クラスター名に使用できない文字が含まれています: %s", cluster)
		}
	default:
		return Descriptor{}, fmt.Errorf("未対応のリソース種別です: %s", kind)
	}

	return Descriptor{
		kind:       kind,
		resourceID: resourceID,
		cluster:    cluster,
		region:     region,
		profile:    profile,
	}, nil
}

func (d Descriptor) Kind() Kind { return d.kind }

// ResourceID はAWS上のリソース識別子（NodeGroupの場合はノードグループ名）
func (d Descriptor) ResourceID() string { return d.resourceID }

func (d Descriptor) Cluster() string { return d.cluster }
func (d Descriptor) Region() string  { return d.region }
func (d Descriptor) Profile() string { return d.profile }

// Identifier は命名に使用する識別子を返す。
// NodeGroupは "<cluster>.<nodegroup>"。EKSの名前には "." が使えないため結合しても衝突しない
func (d Descriptor) Identifier() string {
	if d.kind == KindNodeGroup {
		return d.cluster + "." + d.resourceID
	}
	return d.resourceID
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", d.kind, d.Identifier(), d.region)
}

// Capacity はノードグループのサイズ設定
type Capacity struct {
	Min     int32
	Max     int32
	Desired int32
}

// Validate はmin <= desired <= max を確認する
func (c Capacity) Validate() error {
	if c.Min < 0 || c.Max < 0 || c.Desired < 0 {
		return fmt.Errorf("サイズに負の値は指定できません (min=%d, max=%d, desired=%d)", c.Min, c.Max, c.Desired)
	}
	if c.Max < 1 {
		return fmt.Errorf("maxは1以上である必要があります (max=%d)", c.Max)
	}
	if c.Min > c.Desired || c.Desired > c.Max {
		return fmt.Errorf("min <= desired <= max を満たしていません (min=%d, max=%d, desired=%d)", c.Min, c.Max, c.Desired)
	}
	return nil
}

// ScaleSpec はNodeGroupのスケールアップ/ダウン時のサイズ
type ScaleSpec struct {
	Up   Capacity
	Down Capacity
}

// DefaultScaleDown はスケールダウン時の既定サイズ。EKSはmaxに0を指定できない
var DefaultScaleDown = Capacity{Min: 0, Max: 1, Desired: 0}

// Spec は1リソース分の希望スケジュール。時刻はUTC
//
// StopHour < StartHour は日付をまたぐ運用（夜間稼働）として扱い、エラーにはしない。
type Spec struct {
	StartHour int
	StopHour  int
	Days      []Weekday
	Scale     *ScaleSpec // NodeGroupのみ
}

// Validate はSpecの内容を検証する
func (s Spec) Validate(kind Kind) error {
	if s.StartHour < 0 || s.StartHour > 23 {
		return fmt.Errorf("開始時刻は0〜23で指定してください: %d", s.StartHour)
	}
	if s.StopHour < 0 || s.StopHour > 23 {
		return fmt.Errorf("停止時刻は0〜23で指定してください: %d", s.StopHour)
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("曜日が指定されていません")
	}
	seen := make(map[Weekday]bool, len(s.Days))
	for _, d := range s.Days {
		if !d.Valid() {
			return fmt.Errorf("無効な曜日です: %s", d)
		}
		if seen[d] {
			return fmt.Errorf("曜日が重複しています: %s", d)
		}
		seen[d] = true
	}

	if kind == KindNodeGroup {
		if s.Scale == nil {
			return fmt.Errorf("NodeGroupにはスケール設定が必要です")
		}
		if err := s.Scale.Up.Validate(); err != nil {
			return fmt.Errorf("スケールアップ設定: %w", err)
		}
		if err := s.Scale.Down.Validate(); err != nil {
			return fmt.Errorf("スケールダウン設定: %w", err)
		}
	}
	return nil
}

// Overnight は停止時刻が開始時刻より前（日付をまたぐ）かどうか
func (s Spec) Overnight() bool {
	return s.StopHour < s.StartHour
}

// Target はプリフライトで存在確認済みのリソース
type Target struct {
	Descriptor  Descriptor
	Partition   string // aws, aws-cn など
	AccountID   string
	ResourceArn string
}
