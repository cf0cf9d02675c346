// Package store is the persistence sink for the monitoring engine and the
// query layer for the API handlers.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go_ticketbot/internal/model"
)

// Store wraps the database handle. gorm's pool supports concurrent writers,
// so many task runtimes may write through one Store simultaneously.
type Store struct {
	db *gorm.DB
}

// New creates a store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveTask inserts or updates a task
func (s *Store) SaveTask(task *model.Task) error {
	if err := s.db.Save(task).Error; err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// LoadTask fetches a task by id; returns (nil, nil) when it does not exist
func (s *Store) LoadTask(id int64) (*model.Task, error) {
	var task model.Task
	err := s.db.First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// AppendLog writes one task log entry
func (s *Store) AppendLog(entry *model.TaskLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// SaveCartSession writes one cart session
func (s *Store) SaveCartSession(sess *model.CartSession) error {
	if err := s.db.Create(sess).Error; err != nil {
		return fmt.Errorf("failed to save cart session: %w", err)
	}
	return nil
}

// ListTasks returns tasks newest-first with the total count
func (s *Store) ListTasks(offset, limit int) ([]model.Task, int64, error) {
	var tasks []model.Task
	var total int64
	if err := s.db.Model(&model.Task{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	err := s.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// DeleteTask removes a task and its logs
func (s *Store) DeleteTask(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.TaskLog{}).Error; err != nil {
			return fmt.Errorf("failed to delete task logs: %w", err)
		}
		if err := tx.Delete(&model.Task{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}

// TaskLogs returns the newest log entries for a task
func (s *Store) TaskLogs(taskID int64, limit int) ([]model.TaskLog, error) {
	var logs []model.TaskLog
	err := s.db.Where("task_id = ?", taskID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load task logs: %w", err)
	}
	return logs, nil
}

// LatestCartSession returns the most recent cart session for a task, or
// (nil, nil) when none exists
func (s *Store) LatestCartSession(taskID int64) (*model.CartSession, error) {
	var sess model.CartSession
	err := s.db.Where("task_id = ?", taskID).
		Order("created_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart session: %w", err)
	}
	return &sess, nil
}

// ListCartSessions returns recent cart sessions newest-first
func (s *Store) ListCartSessions(limit int) ([]model.CartSession, error) {
	var sessions []model.CartSession
	err := s.db.Order("created_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart sessions: %w", err)
	}
	return sessions, nil
}

// CartSessionByToken looks up a cart session by its capability token
func (s *Store) CartSessionByToken(token string) (*model.CartSession, error) {
	var sess model.CartSession
	err := s.db.Where("token = ?", token).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart session: %w", err)
	}
	return &sess, nil
}

// MarkCartSessionUsed sets used_at on first external access only
func (s *Store) MarkCartSessionUsed(id int64) error {
	err := s.db.Model(&model.CartSession{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", gorm.Expr("NOW()")).Error
	if err != nil {
		return fmt.Errorf("failed to mark cart session used: %w", err)
	}
	return nil
}
