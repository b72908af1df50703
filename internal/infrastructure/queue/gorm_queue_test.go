package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestGormQueue(t *testing.T) *GormTaskQueue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&QueuedActionModel{}))
	return NewGormTaskQueue(db, GormQueueConfig{MaxRetries: 2, RetryDelay: 30 * time.Second})
}

func TestGormQueueScheduleAndSearch(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	job, err := q.ScheduleSingle(ctx, time.Now().Add(time.Minute), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, []string{"42"}, job.Args)

	found, err := q.Search(ctx, SearchFilter{Hook: "reports.sync_order", Group: "reports"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, job.ID, found[0].ID)
}

func TestGormQueueSearchBySubstring(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	_, err := q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)
	_, err = q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"7"}, "reports")
	require.NoError(t, err)
	_, err = q.ScheduleSingle(ctx, time.Now(), "reports.customers_batch_init", []string{"30", "false"}, "reports")
	require.NoError(t, err)

	// Args are serialized as JSON, so an id search matches the argument list.
	found, err := q.Search(ctx, SearchFilter{Search: "42", Group: "reports"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"42"}, found[0].Args)

	// A hook substring matches the init job the same way the chainer's
	// prerequisite check relies on.
	found, err = q.Search(ctx, SearchFilter{Search: "reports.customers_batch", Group: "reports"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "reports.customers_batch_init", found[0].Hook)
}

func TestGormQueueSearchOrderAndLimit(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		_, err := q.ScheduleSingle(ctx, base.Add(time.Duration(i)*time.Minute), "reports.orders_batch", nil, "reports")
		require.NoError(t, err)
	}

	found, err := q.Search(ctx, SearchFilter{Order: "desc", PerPage: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.WithinDuration(t, base.Add(2*time.Minute), found[0].RunAt, time.Second)
}

func TestGormQueueCancelAll(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	_, err := q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)
	_, err = q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"7"}, "reports")
	require.NoError(t, err)
	other, err := q.ScheduleSingle(ctx, time.Now(), "exports.generate", nil, "exports")
	require.NoError(t, err)

	// Cancel one specific hook+args pair.
	require.NoError(t, q.CancelAll(ctx, "reports.sync_order", []string{"42"}, "reports"))
	found, err := q.Search(ctx, SearchFilter{Group: "reports"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"7"}, found[0].Args)

	// Empty hook and nil args wipe the whole group, leaving other groups alone.
	require.NoError(t, q.CancelAll(ctx, "", nil, "reports"))
	found, err = q.Search(ctx, SearchFilter{Group: "reports"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = q.Search(ctx, SearchFilter{Group: "exports"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, other.ID, found[0].ID)
}

func TestGormQueueCancelAllSkipsClaimedJobs(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	job, err := q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)
	require.NoError(t, q.db.Model(&QueuedActionModel{}).
		Where("id = ?", job.ID).
		Update("status", string(JobStatusClaimed)).Error)

	require.NoError(t, q.CancelAll(ctx, "", nil, "reports"))

	found, err := q.Search(ctx, SearchFilter{Group: "reports"})
	require.NoError(t, err)
	require.Len(t, found, 1, "a claimed job must survive a group-wide cancel")
}

func TestGormQueueMarkComplete(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	job, err := q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)

	require.NoError(t, q.MarkComplete(ctx, job.ID))
	found, err := q.Search(ctx, SearchFilter{Status: JobStatusComplete})
	require.NoError(t, err)
	require.Len(t, found, 1)

	assert.ErrorIs(t, q.MarkComplete(ctx, uuid.New()), ErrJobNotFound)
}

func TestGormQueueMarkFailedRetriesThenParks(t *testing.T) {
	q := newTestGormQueue(t)
	ctx := context.Background()

	job, err := q.ScheduleSingle(ctx, time.Now(), "reports.sync_order", []string{"42"}, "reports")
	require.NoError(t, err)

	// First two failures re-schedule as pending with a pushed-out run time.
	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, q.MarkFailed(ctx, job.ID))
		found, err := q.Search(ctx, SearchFilter{Status: JobStatusPending})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, attempt, found[0].RetryCount)
		assert.True(t, found[0].RunAt.After(time.Now()))
	}

	// The third failure exceeds MaxRetries and parks the job.
	require.NoError(t, q.MarkFailed(ctx, job.ID))
	found, err := q.Search(ctx, SearchFilter{Status: JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 3, found[0].RetryCount)

	assert.ErrorIs(t, q.MarkFailed(ctx, uuid.New()), ErrJobNotFound)
}

func TestEncodeDecodeArgs(t *testing.T) {
	assert.Equal(t, "[]", encodeArgs(nil))
	assert.Equal(t, `["42","false"]`, encodeArgs([]string{"42", "false"}))
	assert.Equal(t, []string{"42", "false"}, decodeArgs(`["42","false"]`))
	assert.Nil(t, decodeArgs("not json"))
}
