package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rkondo/kaiwa/internal/logger"
)

// ErrLessonNotFound is returned when no lesson matches the query.
var ErrLessonNotFound = errors.New("lesson not found")

// NewLessonData is the input for persisting one compiled lesson version.
// Payload is the serialized LessonRoot.
type NewLessonData struct {
	ID           uuid.UUID
	CanDoID      string
	Metalanguage string
	Model        string
	Payload      []byte
}

// LessonRepo is the append-only lesson store keyed by (cando_id, version).
type LessonRepo interface {
	// SaveNewVersion allocates the next version for the CanDo and inserts
	// the record in one transaction. Returns the allocated version.
	SaveNewVersion(ctx context.Context, data NewLessonData) (int, error)

	// Get returns one lesson version.
	Get(ctx context.Context, canDoID string, version int) (*LessonRecord, error)

	// Latest returns the highest version for the CanDo.
	Latest(ctx context.Context, canDoID string) (*LessonRecord, error)

	// GetByID returns a lesson by its row id.
	GetByID(ctx context.Context, id uuid.UUID) (*LessonRecord, error)

	// ListVersions returns all versions for the CanDo, oldest first.
	ListVersions(ctx context.Context, canDoID string) ([]LessonRecord, error)
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *lessonRepo) SaveNewVersion(ctx context.Context, data NewLessonData) (int, error) {
	var version int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var max int
		if err := tx.Model(&LessonRecord{}).
			Where("cando_id = ?", data.CanDoID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&max).Error; err != nil {
			return fmt.Errorf("max version: %w", err)
		}
		version = max + 1

		rec := LessonRecord{
			ID:           data.ID,
			CanDoID:      data.CanDoID,
			Version:      version,
			Metalanguage: data.Metalanguage,
			Model:        data.Model,
			Payload:      data.Payload,
			CreatedAt:    time.Now().UTC(),
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("lesson version saved", "cando_id", data.CanDoID, "version", version)
	return version, nil
}

func (r *lessonRepo) Get(ctx context.Context, canDoID string, version int) (*LessonRecord, error) {
	var rec LessonRecord
	err := r.db.WithContext(ctx).
		Where("cando_id = ? AND version = ?", canDoID, version).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *lessonRepo) Latest(ctx context.Context, canDoID string) (*LessonRecord, error) {
	var rec LessonRecord
	err := r.db.WithContext(ctx).
		Where("cando_id = ?", canDoID).
		Order("version DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *lessonRepo) GetByID(ctx context.Context, id uuid.UUID) (*LessonRecord, error) {
	var rec LessonRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *lessonRepo) ListVersions(ctx context.Context, canDoID string) ([]LessonRecord, error) {
	var out []LessonRecord
	err := r.db.WithContext(ctx).
		Where("cando_id = ?", canDoID).
		Order("version ASC").
		Find(&out).Error
	return out, err
}
