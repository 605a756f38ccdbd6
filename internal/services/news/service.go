// Package news provides business logic for news posts with an optional
// cover image stored through the media storage core.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrinecommerce/api/internal/storage"
)

var (
	// ErrNotFound is returned when a news post does not exist.
	ErrNotFound = errors.New("news post not found")

	// ErrSlugTaken is returned when the slug is already in use.
	ErrSlugTaken = errors.New("slug already in use")
)

// Post is a news post. CoverPath is nil when no cover image is attached.
type Post struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	CoverPath *string   `json:"cover_path"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields for a new post plus an optional validated
// cover upload.
type CreateInput struct {
	Title     string
	Slug      string
	Body      string
	Published bool
	Cover     *storage.Upload
}

// Service provides news management.
type Service struct {
	pool   *pgxpool.Pool
	media  *storage.MediaStore
	logger *slog.Logger
}

// NewService creates a news service.
func NewService(pool *pgxpool.Pool, media *storage.MediaStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, media: media, logger: logger}
}

// Create persists the cover image (when present), then inserts the post.
// If the insert fails after the cover was persisted, the descriptor goes to
// the orphan-cleanup queue.
func (s *Service) Create(ctx context.Context, in CreateInput) (Post, error) {
	var descriptors []storage.Descriptor
	if in.Cover != nil {
		var err error
		descriptors, err = s.media.PersistMedia(ctx, []storage.Upload{*in.Cover}, "news")
		if err != nil {
			return Post{}, fmt.Errorf("persisting cover image: %w", err)
		}
	}

	now := time.Now().UTC()
	p := Post{
		ID:        uuid.New(),
		Title:     in.Title,
		Slug:      in.Slug,
		Body:      in.Body,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(descriptors) > 0 {
		p.CoverPath = &descriptors[0].Path
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO news_posts (id, title, slug, body, cover_path, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Title, p.Slug, p.Body, p.CoverPath, p.Published, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		s.media.EnqueueOrphanCleanup(descriptors)
		if isUniqueViolation(err) {
			return Post{}, ErrSlugTaken
		}
		return Post{}, fmt.Errorf("inserting news post: %w", err)
	}

	s.logger.Info("news post created", slog.String("post_id", p.ID.String()))
	return p, nil
}

// Delete removes the post and schedules async deletion of its cover image.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var coverPath *string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM news_posts WHERE id = $1 RETURNING cover_path`, id).Scan(&coverPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting news post: %w", err)
	}

	if coverPath != nil {
		targets := s.media.ResolveTargets([]storage.Ref{storage.PathRef(*coverPath)})
		s.media.EnqueueOrphanCleanup(targets)
	}

	s.logger.Info("news post deleted", slog.String("post_id", id.String()))
	return nil
}

// Get returns one post by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `
		SELECT id, title, slug, body, cover_path, published, created_at, updated_at
		FROM news_posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("getting news post: %w", err)
	}
	return p, nil
}

// List returns posts, optionally only published ones.
func (s *Service) List(ctx context.Context, publishedOnly bool) ([]Post, error) {
	query := `
		SELECT id, title, slug, body, cover_path, published, created_at, updated_at
		FROM news_posts`
	if publishedOnly {
		query += ` WHERE published`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing news posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning news post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Body, &p.CoverPath, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
