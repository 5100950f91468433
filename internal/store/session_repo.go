package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rkondo/kaiwa/internal/logger"
)

// ErrSessionNotFound is returned by Flush when the session does not exist.
// Guided turns never see it: absence means "create at stage 0".
var ErrSessionNotFound = errors.New("guided session not found")

// SessionRepo manages guided-session progress. Serialization of concurrent
// turns is the evaluator's job; the repo only persists.
type SessionRepo interface {
	// GetOrCreate returns the session for (userID, lessonID), creating it
	// at stage 0 with empty turn history on first use.
	GetOrCreate(ctx context.Context, userID string, lessonID uuid.UUID) (*GuidedSessionRecord, error)

	// SaveProgress atomically persists the stage index and turn history.
	SaveProgress(ctx context.Context, id uuid.UUID, stageIdx int, turnHistory []byte) error

	// Flush resets progress (stage 0, empty history) and stamps
	// flushed_at, keeping the session identity. Returns the stamp.
	Flush(ctx context.Context, id uuid.UUID) (time.Time, error)

	// Find returns the session for (userID, lessonID) or ErrSessionNotFound.
	Find(ctx context.Context, userID string, lessonID uuid.UUID) (*GuidedSessionRecord, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *sessionRepo) GetOrCreate(ctx context.Context, userID string, lessonID uuid.UUID) (*GuidedSessionRecord, error) {
	var rec GuidedSessionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rec = GuidedSessionRecord{
		ID:          uuid.New(),
		UserID:      userID,
		LessonID:    lessonID,
		StageIdx:    0,
		TurnHistory: []byte("[]"),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	r.log.Debug("guided session created", "user_id", userID, "lesson_id", lessonID)
	return &rec, nil
}

func (r *sessionRepo) SaveProgress(ctx context.Context, id uuid.UUID, stageIdx int, turnHistory []byte) error {
	return r.db.WithContext(ctx).
		Model(&GuidedSessionRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stage_idx":    stageIdx,
			"turn_history": turnHistory,
		}).Error
}

func (r *sessionRepo) Flush(ctx context.Context, id uuid.UUID) (time.Time, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&GuidedSessionRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stage_idx":    0,
			"turn_history": []byte("[]"),
			"flushed_at":   now,
		})
	if res.Error != nil {
		return time.Time{}, res.Error
	}
	if res.RowsAffected == 0 {
		return time.Time{}, ErrSessionNotFound
	}
	return now, nil
}

func (r *sessionRepo) Find(ctx context.Context, userID string, lessonID uuid.UUID) (*GuidedSessionRecord, error) {
	var rec GuidedSessionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
