package schedule

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyDesired(t *testing.T, days []Weekday) Desired {
	t.Helper()
	spec := dbSpec()
	spec.Days = days
	desired, err := BuildDesired(dbTarget(), spec, DefaultDocuments())
	require.NoError(t, err)
	return desired
}

// seedConverged は希望状態と一致するリモート状態を用意する
func seedConverged(t *testing.T, fake *fakeAccessor, desired Desired) {
	t.Helper()
	ctx := context.Background()
	_, err := NewReconciler(fake).Apply(ctx, desired, false)
	require.NoError(t, err)
	fake.resetCalls()
}

func TestApply_FromEmpty(t *testing.T) {
	fake := newFakeAccessor()
	var out bytes.Buffer
	r := NewReconciler(fake, WithOutput(&out))

	report, err := r.Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.NoError(t, err)

	assert.Equal(t, 13, report.Created, "ポリシー・ロール・アタッチ・アソシエーション10件")
	assert.Equal(t, 0, report.Failed)

	calls := fake.mutatingCalls()
	require.Len(t, calls, 13)
	// ポリシー → ロール → アタッチ → アソシエーションの順
	assert.Equal(t, "CreatePolicy", calls[0].Method)
	assert.Equal(t, "CreateRole", calls[1].Method)
	assert.Equal(t, "AttachPolicy", calls[2].Method)
	for _, c := range calls[3:] {
		assert.Equal(t, "CreateAssociation", c.Method)
	}
	assert.Equal(t, "StartDatabase_db1_MON", calls[3].Arg)
	assert.Equal(t, "StopDatabase_db1_FRI", calls[12].Arg)

	a := fake.associations["StopDatabase_db1_WED"]
	require.NotNil(t, a)
	assert.Equal(t, "cron(0 18 ? * WED *)", a.ScheduleExpression)
	assert.Equal(t, []string{"arn:aws:iam::123456789012:role/DatabaseStartStopRole_db1"}, a.Parameters[AssumeRoleParameter])
	assert.Contains(t, fake.roles["DatabaseStartStopRole_db1"].AttachedPolicyArns,
		"arn:aws:iam::123456789012:policy/DatabaseStartStopPolicy_db1")
}

func TestApply_Idempotent(t *testing.T) {
	fake := newFakeAccessor()
	desired := applyDesired(t, weekdays())
	seedConverged(t, fake, desired)

	report, err := NewReconciler(fake).Apply(context.Background(), desired, false)
	require.NoError(t, err)

	assert.Empty(t, fake.mutatingCalls(), "2回目の適用では変更を行わない")
	assert.False(t, report.Changed())
	assert.Equal(t, 13, report.Unchanged)
}

func TestApply_PartialPriorState(t *testing.T) {
	fake := newFakeAccessor()
	desired := applyDesired(t, weekdays())

	// ポリシー・ロールとStop-MONのみ存在する状態
	seedConverged(t, fake, applyDesired(t, []Weekday{Monday}))
	delete(fake.associations, "StartDatabase_db1_MON")

	report, err := NewReconciler(fake).Apply(context.Background(), desired, false)
	require.NoError(t, err)

	assert.Equal(t, 9, fake.count("CreateAssociation"))
	assert.Equal(t, 0, fake.count("UpdateAssociation"))
	assert.Equal(t, 0, fake.count("CreatePolicy"))
	assert.Equal(t, 0, fake.count("CreateRole"))
	assert.Equal(t, 9, report.Created)
	assert.Len(t, fake.associations, 10)
}

func TestApply_OnlyStopMondayExists(t *testing.T) {
	fake := newFakeAccessor()
	desired := applyDesired(t, weekdays())
	for _, da := range desired.Associations {
		if da.Name == "StopDatabase_db1_MON" {
			fake.seedAssociation(da.AssociationInput)
		}
	}

	_, err := NewReconciler(fake).Apply(context.Background(), desired, false)
	require.NoError(t, err)

	assert.Equal(t, 9, fake.count("CreateAssociation"))
	assert.Equal(t, 0, fake.count("UpdateAssociation"))
}

func TestApply_UpdateNotDuplicate(t *testing.T) {
	fake := newFakeAccessor()
	desired := applyDesired(t, weekdays())
	seedConverged(t, fake, desired)

	stale := fake.associations["StartDatabase_db1_TUE"]
	staleID := stale.ID
	stale.ScheduleExpression = "cron(0 7 ? * TUE *)"

	report, err := NewReconciler(fake).Apply(context.Background(), desired, false)
	require.NoError(t, err)

	calls := fake.mutatingCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, call{Method: "UpdateAssociation", Arg: "StartDatabase_db1_TUE"}, calls[0])
	assert.Equal(t, 1, report.Updated)

	updated := fake.associations["StartDatabase_db1_TUE"]
	assert.Equal(t, staleID, updated.ID, "IDを維持したまま更新する")
	assert.Equal(t, "cron(0 6 ? * TUE *)", updated.ScheduleExpression)
}

func TestApply_RepairsDetachedRole(t *testing.T) {
	fake := newFakeAccessor()
	desired := applyDesired(t, weekdays())
	seedConverged(t, fake, desired)
	fake.roles[desired.RoleName].AttachedPolicyArns = nil

	_, err := NewReconciler(fake).Apply(context.Background(), desired, false)
	require.NoError(t, err)

	assert.Equal(t, []call{{Method: "AttachPolicy", Arg: desired.RoleName}}, fake.mutatingCalls())
}

func TestApply_RoleFailureSkipsAssociations(t *testing.T) {
	fake := newFakeAccessor()
	fake.failOn["CreateRole:DatabaseStartStopRole_db1"] = errors.New("AccessDenied")
	var out bytes.Buffer

	report, err := NewReconciler(fake, WithOutput(&out)).Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.Error(t, err)

	var apiErr *RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ObjectRole, apiErr.Object)
	assert.Equal(t, "DatabaseStartStopRole_db1", apiErr.Name)

	assert.Equal(t, 1, fake.count("CreatePolicy"), "ポリシーはロールに依存しない")
	assert.Equal(t, 0, fake.count("AttachPolicy"))
	assert.Equal(t, 0, fake.count("CreateAssociation"))
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 11, report.Skipped)
	assert.Contains(t, out.String(), "スキップ")
}

func TestApply_IndependentAssociationFailure(t *testing.T) {
	fake := newFakeAccessor()
	fake.failOn["CreateAssociation:StartDatabase_db1_WED"] = errors.New("ThrottlingException")

	report, err := NewReconciler(fake).Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.Error(t, err)

	assert.Equal(t, 10, fake.count("CreateAssociation"), "他のアソシエーションは処理を継続する")
	assert.Len(t, fake.associations, 9)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, err.Error(), "StartDatabase_db1_WED")

	// 再実行で収束する
	delete(fake.failOn, "CreateAssociation:StartDatabase_db1_WED")
	fake.resetCalls()
	_, err = NewReconciler(fake).Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.NoError(t, err)
	assert.Equal(t, []call{{Method: "CreateAssociation", Arg: "StartDatabase_db1_WED"}}, fake.mutatingCalls())
}

func TestApply_Parallel(t *testing.T) {
	fake := newFakeAccessor()
	var out bytes.Buffer

	report, err := NewReconciler(fake, WithWorkers(4), WithOutput(&out)).
		Apply(context.Background(), applyDesired(t, AllWeekdays), false)
	require.NoError(t, err)

	assert.Equal(t, 14, fake.count("CreateAssociation"))
	assert.Equal(t, 17, report.Created)

	calls := fake.mutatingCalls()
	assert.Equal(t, "AttachPolicy", calls[2].Method, "ロール・ポリシーはアソシエーションより先に完了する")
}

func TestApply_DryRun(t *testing.T) {
	fake := newFakeAccessor()
	var out bytes.Buffer

	report, err := NewReconciler(fake, WithDryRun(true), WithOutput(&out)).
		Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Empty(t, fake.mutatingCalls())
	assert.Contains(t, out.String(), "+ 作成 Association StartDatabase_db1_MON")
	assert.Contains(t, out.String(), "変更: 13件")
}

func TestApply_ShrinkDaysOrphansWithoutPrune(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, weekdays()))

	_, err := NewReconciler(fake).Apply(context.Background(), applyDesired(t, []Weekday{Monday, Tuesday, Wednesday}), false)
	require.NoError(t, err)

	assert.Empty(t, fake.mutatingCalls())
	assert.Contains(t, fake.associations, "StopDatabase_db1_FRI")
}

func TestApply_Prune(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, weekdays()))
	// 別リソースのアソシエーションは対象外
	fake.seedAssociation(AssociationInput{Name: "StartDatabase_db1-replica_MON"})

	report, err := NewReconciler(fake).Apply(context.Background(), applyDesired(t, []Weekday{Monday, Tuesday, Wednesday}), true)
	require.NoError(t, err)

	assert.Equal(t, 4, fake.count("DeleteAssociation"))
	assert.Equal(t, 4, report.Deleted)
	assert.NotContains(t, fake.associations, "StartDatabase_db1_THU")
	assert.NotContains(t, fake.associations, "StopDatabase_db1_FRI")
	assert.Contains(t, fake.associations, "StopDatabase_db1_WED")
	assert.Contains(t, fake.associations, "StartDatabase_db1-replica_MON")
}

func TestDestroy_Complete(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, weekdays()))

	teardown, err := BuildTeardown(dbTarget(), weekdays())
	require.NoError(t, err)

	report, err := NewReconciler(fake).Destroy(context.Background(), teardown, false)
	require.NoError(t, err)

	calls := fake.mutatingCalls()
	require.Len(t, calls, 13)
	for _, c := range calls[:10] {
		assert.Equal(t, "DeleteAssociation", c.Method)
	}
	assert.Equal(t, "DetachPolicy", calls[10].Method)
	assert.Equal(t, "DeleteRole", calls[11].Method)
	assert.Equal(t, "DeletePolicy", calls[12].Method)

	assert.Equal(t, 13, report.Deleted)
	assert.Empty(t, fake.associations)
	assert.Empty(t, fake.roles)
	assert.Empty(t, fake.policies)
}

func TestDestroy_Tolerant(t *testing.T) {
	fake := newFakeAccessor()
	teardown, err := BuildTeardown(dbTarget(), weekdays())
	require.NoError(t, err)

	report, err := NewReconciler(fake).Destroy(context.Background(), teardown, false)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, fake.mutatingCalls())
	assert.Equal(t, 12, report.Unchanged)
}

func TestDestroy_NotFoundIsSuccess(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, []Weekday{Monday}))

	// 観測後に他の操作で削除された場合
	id := fake.associations["StartDatabase_db1_MON"].ID
	fake.failOn["DeleteAssociation:"+id] = ErrNotFound

	teardown, err := BuildTeardown(dbTarget(), []Weekday{Monday})
	require.NoError(t, err)
	report, err := NewReconciler(fake).Destroy(context.Background(), teardown, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, fake.roles)
}

func TestDestroy_AssociationFailureKeepsRole(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, weekdays()))
	id := fake.associations["StopDatabase_db1_THU"].ID
	fake.failOn["DeleteAssociation:"+id] = errors.New("AccessDenied")

	teardown, err := BuildTeardown(dbTarget(), weekdays())
	require.NoError(t, err)
	report, err := NewReconciler(fake).Destroy(context.Background(), teardown, false)
	require.Error(t, err)

	assert.Equal(t, 10, fake.count("DeleteAssociation"))
	assert.Equal(t, 0, fake.count("DetachPolicy"))
	assert.Equal(t, 0, fake.count("DeleteRole"))
	assert.Equal(t, 0, fake.count("DeletePolicy"))
	assert.Equal(t, 3, report.Skipped)
	assert.Contains(t, fake.roles, "DatabaseStartStopRole_db1")
}

func TestDestroy_AllDaysWithPrune(t *testing.T) {
	fake := newFakeAccessor()
	seedConverged(t, fake, applyDesired(t, AllWeekdays))

	teardown, err := BuildTeardown(dbTarget(), weekdays())
	require.NoError(t, err)
	_, err = NewReconciler(fake).Destroy(context.Background(), teardown, true)
	require.NoError(t, err)

	assert.Equal(t, 14, fake.count("DeleteAssociation"), "接頭辞が一致する残りの曜日も削除する")
	assert.Empty(t, fake.associations)
}

func TestObserve_ReadErrorIsFatal(t *testing.T) {
	fake := newFakeAccessor()
	fake.failOn["FindRole:*"] = errors.New("ExpiredToken")

	_, err := NewReconciler(fake).Apply(context.Background(), applyDesired(t, weekdays()), false)
	require.Error(t, err)
	assert.Empty(t, fake.mutatingCalls())
}

func TestReport_Print(t *testing.T) {
	var out bytes.Buffer
	r := &Report{}
	r.record(Intent{Op: OpNoOp}, nil)
	r.Print(&out)
	assert.Contains(t, out.String(), "🎉")

	out.Reset()
	r.record(Intent{Op: OpCreate, Object: ObjectAssociation, Name: "x"}, &RemoteAPIError{Op: OpCreate, Object: ObjectAssociation, Name: "x", Err: errors.New("boom")})
	r.Print(&out)
	assert.Contains(t, out.String(), "失敗: 1")
	assert.Contains(t, out.String(), "Association x の作成に失敗: boom")
	assert.Error(t, r.Err())
}
