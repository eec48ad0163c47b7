// Package post implements media posts: the upload workflow, the feed and deletion.
package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// File types a post can carry.
const (
	FileTypeImage = "image"
	FileTypeVideo = "video"
)

// Post is a caption paired with a reference to externally hosted media.
type Post struct {
	ID        string    `json:"id"        example:"3f7b2c1e-8a4d-4f0b-9c55-2d1e6a7b8c90"`
	Caption   string    `json:"caption"   example:"hi"`
	URL       string    `json:"url"       example:"https://cdn.example/x.png"`
	FileType  string    `json:"file_type" example:"image" enums:"image,video"`
	FileName  string    `json:"file_name" example:"x.png"`
	CreatedAt time.Time `json:"created_at" example:"2026-02-27T14:48:34Z"`
}

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

var sqBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var postColumns = []string{"id", "caption", "url", "file_type", "file_name", "created_at"}

// Repository handles all post database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts p inside its own transaction and returns the stored row.
// id and created_at are assigned by the database.
func (r *Repository) Create(ctx context.Context, p *Post) (*Post, error) {
	query, args, err := insertQuery(p).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	created, err := scanPost(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// List returns every post, newest first.
func (r *Repository) List(ctx context.Context) ([]*Post, error) {
	query, args, err := feedQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feed query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Delete removes the post with the given id. Returns ErrNotFound when no
// row matched; the transaction is then rolled back untouched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := deleteQuery(id).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertQuery(p *Post) squirrel.InsertBuilder {
	return sqBuilder.
		Insert("posts").
		Columns("caption", "url", "file_type", "file_name").
		Values(p.Caption, p.URL, p.FileType, p.FileName).
		Suffix("RETURNING id, caption, url, file_type, file_name, created_at")
}

func feedQuery() squirrel.SelectBuilder {
	return sqBuilder.
		Select(postColumns...).
		From("posts").
		OrderBy("created_at DESC", "id DESC")
}

func deleteQuery(id uuid.UUID) squirrel.DeleteBuilder {
	return sqBuilder.
		Delete("posts").
		Where(squirrel.Eq{"id": id.String()})
}

func scanPost(row pgx.Row) (*Post, error) {
	p := &Post{}
	if err := row.Scan(&p.ID, &p.Caption, &p.URL, &p.FileType, &p.FileName, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}
