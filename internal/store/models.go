package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LessonRecord is one immutable lesson version. Rows are append-only:
// recompiling a CanDo allocates the next version, never overwrites.
type LessonRecord struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CanDoID      string         `gorm:"column:cando_id;index:idx_lessons_cando_version,unique,priority:1;not null"`
	Version      int            `gorm:"index:idx_lessons_cando_version,unique,priority:2;not null"`
	Metalanguage string         `gorm:"not null"`
	Model        string         `gorm:"not null"`
	Payload      datatypes.JSON `gorm:"not null"`
	CreatedAt    time.Time
}

func (LessonRecord) TableName() string { return "lessons" }

// GuidedSessionRecord holds practice-loop progress for one learner on one
// lesson. The row identity survives flushes; only progress is reset.
type GuidedSessionRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID      string         `gorm:"index:idx_sessions_user_lesson,unique,priority:1;not null"`
	LessonID    uuid.UUID      `gorm:"type:uuid;index:idx_sessions_user_lesson,unique,priority:2;not null"`
	StageIdx    int            `gorm:"not null;default:0"`
	TurnHistory datatypes.JSON `gorm:"not null"`
	FlushedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (GuidedSessionRecord) TableName() string { return "guided_sessions" }

// LLMEvent is one recorded LLM request, the provenance trail for every
// generation and evaluation.
type LLMEvent struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Provider     string `gorm:"not null"`
	Model        string `gorm:"not null"`
	Purpose      string `gorm:"index;not null"`
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
	CreatedAt    time.Time
}

func (LLMEvent) TableName() string { return "llm_events" }
