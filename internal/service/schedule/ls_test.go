package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededLister() *fakeAccessor {
	fake := newFakeAccessor()
	for _, name := range []string{"StopDatabase_db1_MON", "StartInstance_i-0abc_FRI", "StartDatabase_db1_MON"} {
		fake.seedAssociation(AssociationInput{
			Name:               name,
			DocumentName:       "AWS-StartRdsInstance",
			ScheduleExpression: "cron(0 6 ? * MON *)",
		})
	}
	executed := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	fake.associations["StartDatabase_db1_MON"].LastExecutionDate = &executed
	return fake
}

func TestListSchedules_SortedAndFiltered(t *testing.T) {
	fake := seededLister()

	entries, err := ListSchedules(context.Background(), fake, ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "StartDatabase_db1_MON", entries[0].Name)
	assert.Equal(t, "StartInstance_i-0abc_FRI", entries[1].Name)
	assert.Equal(t, "StopDatabase_db1_MON", entries[2].Name)

	entries, err = ListSchedules(context.Background(), fake, ListOptions{Search: "*Database*"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = ListSchedules(context.Background(), fake, ListOptions{Search: "i-0abc"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "StartInstance_i-0abc_FRI", entries[0].Name)
}

func TestListSchedules_Error(t *testing.T) {
	fake := newFakeAccessor()
	fake.failOn["ListAssociations:*"] = errors.New("AccessDenied")

	_, err := ListSchedules(context.Background(), fake, ListOptions{})
	assert.ErrorContains(t, err, "アソシエーション一覧の取得に失敗")
}

func TestRender(t *testing.T) {
	entries, err := ListSchedules(context.Background(), seededLister(), ListOptions{})
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Render(&out, entries, FormatTable, ""))
		assert.Contains(t, out.String(), "アソシエーション一覧:")
		assert.Contains(t, out.String(), "2024-04-01 06:00:00")
		assert.Contains(t, out.String(), "合計: 3件")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Render(&out, entries, FormatJSON, ""))
		var decoded []Entry
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, entries[0].Name, decoded[0].Name)
		assert.NotContains(t, strings.Split(out.String(), "}")[1], "lastExecutionDate")
	})

	t.Run("markdown", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Render(&out, entries, FormatMarkdown, ""))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "| アソシエーション名 | ドキュメント | スケジュール | 最終実行日時 |", lines[0])
		assert.Equal(t, "| --- | --- | --- | --- |", lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "| StartDatabase_db1_MON |"))
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Render(&out, nil, FormatTable, "nothing"))
		assert.Equal(t, "アソシエーションが見つかりませんでした\n", out.String())
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Render(&bytes.Buffer{}, entries, "yaml", ""))
	})
}
