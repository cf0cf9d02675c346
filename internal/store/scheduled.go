package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go_ticketbot/internal/model"
)

// DueScheduledTasks returns scheduled tasks whose trigger window has
// arrived: due within the next minute but not older than five minutes.
func (s *Store) DueScheduledTasks(now time.Time) ([]model.ScheduledTask, error) {
	var due []model.ScheduledTask
	err := s.db.Where("status = ? AND scheduled_date <= ? AND scheduled_date >= ?",
		model.ScheduledStatusScheduled,
		now.Add(time.Minute),
		now.Add(-5*time.Minute)).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due scheduled tasks: %w", err)
	}
	return due, nil
}

// OverdueScheduledTasks returns scheduled tasks that were never triggered
// and are more than ten minutes past due.
func (s *Store) OverdueScheduledTasks(now time.Time) ([]model.ScheduledTask, error) {
	var overdue []model.ScheduledTask
	err := s.db.Where("status = ? AND scheduled_date < ?",
		model.ScheduledStatusScheduled,
		now.Add(-10*time.Minute)).
		Find(&overdue).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue scheduled tasks: %w", err)
	}
	return overdue, nil
}

// ActiveScheduledTasks returns scheduled tasks that are still pending or
// already triggered, keyed for catalog enrichment.
func (s *Store) ActiveScheduledTasks() ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	err := s.db.Where("status IN ?", []model.ScheduledTaskStatus{
		model.ScheduledStatusScheduled,
		model.ScheduledStatusTriggered,
	}).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active scheduled tasks: %w", err)
	}
	return tasks, nil
}

// ScheduledTaskByID fetches one scheduled task; (nil, nil) when absent
func (s *Store) ScheduledTaskByID(id int64) (*model.ScheduledTask, error) {
	var st model.ScheduledTask
	err := s.db.First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled task: %w", err)
	}
	return &st, nil
}

// SaveScheduledTask inserts or updates a scheduled task
func (s *Store) SaveScheduledTask(st *model.ScheduledTask) error {
	if err := s.db.Save(st).Error; err != nil {
		return fmt.Errorf("failed to save scheduled task: %w", err)
	}
	return nil
}

// ListScheduledTasks returns scheduled tasks ordered by trigger date
func (s *Store) ListScheduledTasks() ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	if err := s.db.Order("scheduled_date ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduled tasks: %w", err)
	}
	return tasks, nil
}

// DeleteScheduledTask removes a scheduled task
func (s *Store) DeleteScheduledTask(id int64) error {
	if err := s.db.Delete(&model.ScheduledTask{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete scheduled task: %w", err)
	}
	return nil
}
