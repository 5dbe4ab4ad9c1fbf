package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"ec2", KindInstance, false},
		{"Instance", KindInstance, false},
		{"RDS", KindDatabase, false},
		{"database", KindDatabase, false},
		{"eks", KindNodeGroup, false},
		{"nodegroup", KindNodeGroup, false},
		{"lambda", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDescriptor(t *testing.T) {
	d, err := NewDescriptor(KindNodeGroup, "workers", "prod", testRegion, "dev")
	require.NoError(t, err)
	assert.Equal(t, "prod.workers", d.Identifier())
	assert.Equal(t, "workers", d.ResourceID())
	assert.Equal(t, "prod", d.Cluster())
	assert.Equal(t, testRegion, d.Region())
	assert.Equal(t, "dev", d.Profile())

	_, err = NewDescriptor(KindNodeGroup, "workers", "", testRegion, "dev")
	assert.Error(t, err, "NodeGroupはクラスター名が必須")

	_, err = NewDescriptor(KindDatabase, "db1", "prod", testRegion, "dev")
	assert.Error(t, err, "Databaseにクラスター名は指定できない")

	_, err = NewDescriptor(KindInstance, "", "", testRegion, "dev")
	assert.Error(t, err)

	_, err = NewDescriptor(KindInstance, "i-123/../x", "", testRegion, "dev")
	assert.Error(t, err)

	_, err = NewDescriptor(KindDatabase, "db.1", "", testRegion, "dev")
	assert.Error(t, err, "識別子に.は使えない")
}

func TestSpecValidate(t *testing.T) {
	valid := dbSpec()
	assert.NoError(t, valid.Validate(KindDatabase))

	overnight := Spec{StartHour: 20, StopHour: 6, Days: []Weekday{Friday}}
	assert.NoError(t, overnight.Validate(KindInstance))
	assert.True(t, overnight.Overnight())
	assert.False(t, valid.Overnight())

	invalid := []Spec{
		{StartHour: 24, StopHour: 18, Days: weekdays()},
		{StartHour: 6, StopHour: -1, Days: weekdays()},
		{StartHour: 6, StopHour: 18},
		{StartHour: 6, StopHour: 18, Days: []Weekday{Monday, Monday}},
		{StartHour: 6, StopHour: 18, Days: []Weekday{"FOO"}},
	}
	for _, s := range invalid {
		assert.Error(t, s.Validate(KindDatabase), "%+v", s)
	}
}

func TestSpecValidate_NodeGroup(t *testing.T) {
	s := Spec{StartHour: 6, StopHour: 18, Days: weekdays()}
	assert.Error(t, s.Validate(KindNodeGroup), "スケール設定が必須")

	s.Scale = &ScaleSpec{Up: Capacity{Min: 1, Max: 3, Desired: 2}, Down: DefaultScaleDown}
	assert.NoError(t, s.Validate(KindNodeGroup))

	s.Scale.Up = Capacity{Min: 3, Max: 2, Desired: 2}
	assert.Error(t, s.Validate(KindNodeGroup))

	s.Scale.Up = Capacity{Min: 1, Max: 3, Desired: 2}
	s.Scale.Down = Capacity{Min: 0, Max: 0, Desired: 0}
	assert.Error(t, s.Validate(KindNodeGroup), "maxは1以上")
}
