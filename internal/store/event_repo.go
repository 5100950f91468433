package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rkondo/kaiwa/internal/logger"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = default 50)
	Purpose string // filter by purpose label when non-empty
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// EventRepo provides append access to the LLM provenance log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event by id.
	GetLLMEvent(ctx context.Context, id uint) (*LLMEvent, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	ev := LLMEvent{
		Provider:     data.Provider,
		Model:        data.Model,
		Purpose:      data.Purpose,
		InputTokens:  data.InputTokens,
		OutputTokens: data.OutputTokens,
		LatencyMs:    data.LatencyMs,
		Success:      data.Success,
		ErrorMessage: data.ErrorMessage,
		RequestBody:  data.RequestBody,
		ResponseBody: data.ResponseBody,
		CreatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&ev).Error
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Model(&LLMEvent{}).Order("id DESC").Limit(limit)
	if opts.Purpose != "" {
		q = q.Where("purpose = ?", opts.Purpose)
	}

	var out []LLMEvent
	err := q.Find(&out).Error
	return out, err
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id uint) (*LLMEvent, error) {
	var ev LLMEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
