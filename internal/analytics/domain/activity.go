package domain

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidActivity = errors.New("activity without postId")

// Activity es una fila del log de actividad: un evento de ciclo de vida de un post.
// (PostID, EventType) identifica la fila, así que reprocesar un evento no la duplica.
type Activity struct {
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	EventType  string    `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Summary struct {
	Counts map[string]uint64 `json:"counts"`
	Total  uint64            `json:"total"`
}

type DailyActivity struct {
	Day     time.Time `json:"day"`
	Created uint64    `json:"created"`
	Updated uint64    `json:"updated"`
	Deleted uint64    `json:"deleted"`
}

type AnalyticsRepository interface {
	Record(ctx context.Context, a *Activity) error
	Summary(ctx context.Context) (*Summary, error)
	DailyTrend(ctx context.Context, start, end time.Time) ([]DailyActivity, error)
}

const SummaryCacheKey = "analytics:summary"
