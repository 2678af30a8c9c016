package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
)

const uniqueViolation = "23505"

// SearchRepoPostgres implementa SearchRepository con full-text de PostgreSQL.
type SearchRepoPostgres struct {
	db *sql.DB
}

var _ searchDomain.SearchRepository = (*SearchRepoPostgres)(nil)

func NewSearchRepoPostgres(db *sql.DB) *SearchRepoPostgres {
	return &SearchRepoPostgres{db: db}
}

// InitPostgres crea las tablas si no existen. search_vector se mantiene solo (columna generada).
func InitPostgres(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_posts (
		post_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		search_vector tsvector GENERATED ALWAYS AS (
			to_tsvector('english', coalesce(title, '') || ' ' || coalesce(description, ''))
		) STORED
	);
	CREATE INDEX IF NOT EXISTS idx_search_posts_vector ON search_posts USING GIN (search_vector);
	CREATE INDEX IF NOT EXISTS idx_search_posts_user ON search_posts (user_id);

	CREATE TABLE IF NOT EXISTS search_tombstones (
		post_id TEXT PRIMARY KEY,
		expires_at TIMESTAMPTZ NOT NULL
	);`
	_, err := db.Exec(schema)
	return err
}

func (r *SearchRepoPostgres) Insert(ctx context.Context, p *searchDomain.SearchPost) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_posts (post_id, user_id, title, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.PostID, p.UserID, p.Title, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return searchDomain.ErrSearchRecordExists
	}
	return err
}

func (r *SearchRepoPostgres) Upsert(ctx context.Context, p *searchDomain.SearchPost) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_posts (post_id, user_id, title, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (post_id) DO UPDATE
		 SET user_id = EXCLUDED.user_id, title = EXCLUDED.title,
		     description = EXCLUDED.description, updated_at = EXCLUDED.updated_at`,
		p.PostID, p.UserID, p.Title, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *SearchRepoPostgres) DeleteByPostID(ctx context.Context, postID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM search_posts WHERE post_id = $1`, postID)
	return err
}

// Search trata los términos como OR, igual que $text en Mongo, y ordena por ts_rank.
func (r *SearchRepoPostgres) Search(ctx context.Context, query string, limit int) ([]*searchDomain.SearchPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH q AS (
			SELECT to_tsquery('english', replace(plainto_tsquery('english', $1)::text, '&', '|')) AS query
		)
		SELECT post_id, user_id, title, description, created_at, updated_at
		FROM search_posts, q
		WHERE search_vector @@ q.query
		ORDER BY ts_rank(search_vector, q.query) DESC, created_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*searchDomain.SearchPost, 0, limit)
	for rows.Next() {
		var p searchDomain.SearchPost
		if err := rows.Scan(&p.PostID, &p.UserID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *SearchRepoPostgres) WriteTombstone(ctx context.Context, postID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_tombstones (post_id, expires_at) VALUES ($1, $2)
		 ON CONFLICT (post_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		postID, expiresAt,
	)
	return err
}

func (r *SearchRepoPostgres) IsTombstoned(ctx context.Context, postID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM search_tombstones WHERE post_id = $1 AND expires_at > $2)`,
		postID, now,
	).Scan(&exists)
	return exists, err
}

// PurgeTombstones borra los tombstones caducados; Postgres no tiene TTL nativo.
func (r *SearchRepoPostgres) PurgeTombstones(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM search_tombstones WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
