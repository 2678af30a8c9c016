package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	postDomain "github.com/davicafu/postmesh/internal/post/domain"
)

type PostRepoSQLite struct {
	db *sql.DB
}

var _ postDomain.PostRepository = (*PostRepoSQLite)(nil)

func NewPostRepoSQLite(db *sql.DB) *PostRepoSQLite {
	return &PostRepoSQLite{db: db}
}

// InitSQLite crea la tabla posts si no existe
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS posts (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            media_ids TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )
    `)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`)
	return err
}

const selectColumns = `SELECT id, user_id, title, description, media_ids, created_at, updated_at FROM posts`

func (r *PostRepoSQLite) Create(ctx context.Context, p *postDomain.Post) error {
	mediaIDs, err := json.Marshal(p.MediaIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal media ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO posts (id,user_id,title,description,media_ids,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID.String(), p.UserID, p.Title, p.Description, string(mediaIDs), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*postDomain.Post, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, postDomain.ErrPostNotFound
	}
	return p, err
}

func (r *PostRepoSQLite) List(ctx context.Context, page, limit int) ([]*postDomain.Post, int64, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]*postDomain.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepoSQLite) Update(ctx context.Context, p *postDomain.Post) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title=?, description=?, updated_at=? WHERE id=?`,
		p.Title, p.Description, p.UpdatedAt, p.ID.String(),
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return postDomain.ErrPostNotFound
	}
	return nil
}

// DeleteOwned lee y borra en la misma transacción para devolver los mediaIds del post borrado.
func (r *PostRepoSQLite) DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (p *postDomain.Post, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	p, err = scanPost(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ? AND user_id = ?`, id.String(), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, postDomain.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id.String()); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s scanner) (*postDomain.Post, error) {
	var (
		p         postDomain.Post
		idStr     string
		mediaJSON string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := s.Scan(&idStr, &p.UserID, &p.Title, &p.Description, &mediaJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	p.ID = id
	if err := json.Unmarshal([]byte(mediaJSON), &p.MediaIDs); err != nil {
		return nil, fmt.Errorf("invalid media ids in DB: %w", err)
	}
	if p.MediaIDs == nil {
		p.MediaIDs = []string{}
	}
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return &p, nil
}
