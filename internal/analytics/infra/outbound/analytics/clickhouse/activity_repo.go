package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
)

// ActivityRepo implementa AnalyticsRepository para ClickHouse.
type ActivityRepo struct {
	db *sql.DB
}

var _ analyticsDomain.AnalyticsRepository = (*ActivityRepo)(nil)

func NewActivityRepo(addr string, dbName string) (*ActivityRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &ActivityRepo{db: conn}, nil
}

// InitSchema crea la tabla si no existe. ReplacingMergeTree colapsa las filas repetidas
// de un mismo (post_id, event_type) en los merges; las lecturas usan FINAL.
func (r *ActivityRepo) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS post_activity (
			post_id     String,
			user_id     String,
			event_type  LowCardinality(String),
			occurred_at DateTime64(3),
			event_time  DateTime64(3)
		) ENGINE = ReplacingMergeTree(event_time)
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (post_id, event_type);
	`
	_, err := r.db.Exec(query)
	return err
}

// Record inserta una fila. ClickHouse sólo acepta inserts en lote, así que va en su propia transacción.
func (r *ActivityRepo) Record(ctx context.Context, a *analyticsDomain.Activity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO post_activity (post_id, user_id, event_type, occurred_at, event_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, a.PostID, a.UserID, a.EventType, a.OccurredAt, time.Now().UTC()); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to exec statement for post %s: %w", a.PostID, err)
	}
	return tx.Commit()
}

func (r *ActivityRepo) Summary(ctx context.Context) (*analyticsDomain.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, count() AS total
		FROM post_activity FINAL
		GROUP BY event_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &analyticsDomain.Summary{Counts: map[string]uint64{}}
	for rows.Next() {
		var (
			eventType string
			n         uint64
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, err
		}
		summary.Counts[eventType] = n
		summary.Total += n
	}
	return summary, rows.Err()
}

func (r *ActivityRepo) DailyTrend(ctx context.Context, start, end time.Time) ([]analyticsDomain.DailyActivity, error) {
	query := `
		SELECT
			toStartOfDay(occurred_at) AS day,
			countIf(event_type = 'post.created') AS created,
			countIf(event_type = 'post.updated') AS updated,
			countIf(event_type = 'post.deleted') AS deleted
		FROM post_activity FINAL
		WHERE occurred_at BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trend []analyticsDomain.DailyActivity
	for rows.Next() {
		var d analyticsDomain.DailyActivity
		if err := rows.Scan(&d.Day, &d.Created, &d.Updated, &d.Deleted); err != nil {
			return nil, err
		}
		trend = append(trend, d)
	}
	return trend, rows.Err()
}
