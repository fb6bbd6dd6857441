package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts a new session. An initial history longer than the session's
// message ceiling is rejected up front.
func (r *Repo) Create(ctx context.Context, s *Session) error {
	maxMessages := s.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if len(s.MessageHistory) > maxMessages {
		return fmt.Errorf("%w: max messages is %d", ErrHistoryTooLong, maxMessages)
	}
	return r.db.WithContext(ctx).Create(s).Error
}

// Get returns a session by id. Soft-deleted rows are not found.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Preload("User").
		First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserID returns every live session owned by a user, each with its
// owning user attached so serializing a listing needs no extra round trips.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var sessions []Session
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetByIDAndUserID returns a session only when it exists, is live, and is
// owned by userID. A session owned by someone else reports the same
// gorm.ErrRecordNotFound as a missing one, so callers cannot probe for
// other users' sessions.
func (r *Repo) GetByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAny is the administrative lookup: it bypasses the soft-delete filter.
func (r *Repo) GetAny(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Unscoped().
		First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the session row back, including the full history column.
func (r *Repo) Save(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// Delete removes a session. Soft delete stamps deleted_at and keeps the row;
// hard delete removes it. Deleting an id that does not exist is a no-op.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID, soft bool) error {
	tx := r.db.WithContext(ctx)
	if !soft {
		tx = tx.Unscoped()
	}
	err := tx.Delete(&Session{}, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
