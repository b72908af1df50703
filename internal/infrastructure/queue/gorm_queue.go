package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueuedActionModel is the persisted representation of a queued job
type QueuedActionModel struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Hook       string    `gorm:"column:hook;size:191;not null;index:idx_queued_actions_hook_status"`
	Args       string    `gorm:"column:args;not null"`
	GroupName  string    `gorm:"column:group_name;size:191;not null;index"`
	Status     string    `gorm:"column:status;size:20;not null;index:idx_queued_actions_hook_status"`
	RunAt      time.Time `gorm:"column:run_at;not null;index"`
	RetryCount int       `gorm:"column:retry_count;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (QueuedActionModel) TableName() string {
	return "queued_actions"
}

// GormQueueConfig holds retry settings for the durable queue
type GormQueueConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultGormQueueConfig returns default queue configuration
func DefaultGormQueueConfig() GormQueueConfig {
	return GormQueueConfig{
		MaxRetries: 5,
		RetryDelay: 30 * time.Second,
	}
}

// GormTaskQueue implements TaskQueue on a database table, so queued work
// survives process restarts and multiple workers can claim from it safely.
type GormTaskQueue struct {
	db     *gorm.DB
	config GormQueueConfig
}

// NewGormTaskQueue creates a new database-backed task queue
func NewGormTaskQueue(db *gorm.DB, config GormQueueConfig) *GormTaskQueue {
	return &GormTaskQueue{db: db, config: config}
}

// ScheduleSingle enqueues one pending job
func (q *GormTaskQueue) ScheduleSingle(ctx context.Context, runAt time.Time, hook string, args []string, group string) (*Job, error) {
	model := &QueuedActionModel{
		ID:        uuid.New(),
		Hook:      hook,
		Args:      encodeArgs(args),
		GroupName: group,
		Status:    string(JobStatusPending),
		RunAt:     runAt,
	}
	if err := q.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return modelToJob(model), nil
}

// Search returns jobs matching the filter
func (q *GormTaskQueue) Search(ctx context.Context, filter SearchFilter) ([]*Job, error) {
	query := q.db.WithContext(ctx).Model(&QueuedActionModel{})

	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Hook != "" {
		query = query.Where("hook = ?", filter.Hook)
	}
	if filter.Group != "" {
		query = query.Where("group_name = ?", filter.Group)
	}
	if filter.Search != "" {
		query = query.Where("hook LIKE ? OR args LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.ExcludeClaimed {
		query = query.Where("status <> ?", string(JobStatusClaimed))
	}

	order := "run_at ASC"
	if filter.Order == "desc" {
		order = "run_at DESC"
	}
	query = query.Order(order)

	if filter.PerPage > 0 {
		query = query.Limit(filter.PerPage)
	}

	var models []*QueuedActionModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	jobs := make([]*Job, len(models))
	for i, m := range models {
		jobs[i] = modelToJob(m)
	}
	return jobs, nil
}

// CancelAll cancels matching pending jobs
func (q *GormTaskQueue) CancelAll(ctx context.Context, hook string, args []string, group string) error {
	query := q.db.WithContext(ctx).
		Where("group_name = ? AND status = ?", group, string(JobStatusPending))
	if hook != "" {
		query = query.Where("hook = ?", hook)
	}
	if len(args) > 0 {
		query = query.Where("args = ?", encodeArgs(args))
	}
	return query.Delete(&QueuedActionModel{}).Error
}

// ClaimDue atomically claims up to limit due pending jobs using
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same job.
func (q *GormTaskQueue) ClaimDue(ctx context.Context, limit int) ([]*Job, error) {
	var models []*QueuedActionModel

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", string(JobStatusPending), time.Now()).
			Order("run_at ASC").
			Limit(limit).
			Find(&models).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}

		now := time.Now()
		if err := tx.Model(&QueuedActionModel{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     string(JobStatusClaimed),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for _, m := range models {
			m.Status = string(JobStatusClaimed)
			m.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, len(models))
	for i, m := range models {
		jobs[i] = modelToJob(m)
	}
	return jobs, nil
}

// MarkComplete finishes a claimed job
func (q *GormTaskQueue) MarkComplete(ctx context.Context, id uuid.UUID) error {
	result := q.db.WithContext(ctx).Model(&QueuedActionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(JobStatusComplete),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed re-schedules the job as pending with a delay, or parks it as
// failed once the retry budget is exhausted.
func (q *GormTaskQueue) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model QueuedActionModel
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrJobNotFound
			}
			return err
		}

		model.RetryCount++
		model.UpdatedAt = time.Now()
		if model.RetryCount > q.config.MaxRetries {
			model.Status = string(JobStatusFailed)
		} else {
			model.Status = string(JobStatusPending)
			model.RunAt = time.Now().Add(q.config.RetryDelay)
		}
		return tx.Save(&model).Error
	})
}

// encodeArgs serializes the argument list so it is both round-trippable and
// substring-searchable via LIKE.
func encodeArgs(args []string) string {
	if args == nil {
		args = []string{}
	}
	encoded, _ := json.Marshal(args)
	return string(encoded)
}

func decodeArgs(encoded string) []string {
	var args []string
	if err := json.Unmarshal([]byte(encoded), &args); err != nil {
		return nil
	}
	return args
}

func modelToJob(m *QueuedActionModel) *Job {
	return &Job{
		ID:         m.ID,
		Hook:       m.Hook,
		Args:       decodeArgs(m.Args),
		Group:      m.GroupName,
		Status:     JobStatus(m.Status),
		RunAt:      m.RunAt,
		RetryCount: m.RetryCount,
	}
}

// Ensure GormTaskQueue implements TaskQueue
var _ TaskQueue = (*GormTaskQueue)(nil)
