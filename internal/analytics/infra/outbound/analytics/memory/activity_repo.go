package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
	"github.com/davicafu/postmesh/internal/shared/events"
)

type activityKey struct {
	postID    string
	eventType string
}

// InMemoryActivityRepo deduplica igual que la tabla de ClickHouse: una fila por (postId, eventType).
type InMemoryActivityRepo struct {
	mu   sync.RWMutex
	rows map[activityKey]analyticsDomain.Activity
}

var _ analyticsDomain.AnalyticsRepository = (*InMemoryActivityRepo)(nil)

func NewInMemoryActivityRepo() *InMemoryActivityRepo {
	return &InMemoryActivityRepo{rows: make(map[activityKey]analyticsDomain.Activity)}
}

func (r *InMemoryActivityRepo) Record(ctx context.Context, a *analyticsDomain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[activityKey{a.PostID, a.EventType}] = *a
	return nil
}

func (r *InMemoryActivityRepo) Summary(ctx context.Context) (*analyticsDomain.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := &analyticsDomain.Summary{Counts: map[string]uint64{}}
	for k := range r.rows {
		s.Counts[k.eventType]++
		s.Total++
	}
	return s, nil
}

func (r *InMemoryActivityRepo) DailyTrend(ctx context.Context, start, end time.Time) ([]analyticsDomain.DailyActivity, error) {
	r.mu.RLock()
	days := map[time.Time]*analyticsDomain.DailyActivity{}
	for _, a := range r.rows {
		if a.OccurredAt.Before(start) || a.OccurredAt.After(end) {
			continue
		}
		t := a.OccurredAt.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := days[day]
		if !ok {
			d = &analyticsDomain.DailyActivity{Day: day}
			days[day] = d
		}
		switch a.EventType {
		case events.PostCreated:
			d.Created++
		case events.PostUpdated:
			d.Updated++
		case events.PostDeleted:
			d.Deleted++
		}
	}
	r.mu.RUnlock()

	out := make([]analyticsDomain.DailyActivity, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}
