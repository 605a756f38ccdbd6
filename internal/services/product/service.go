// Package product provides business logic for catalog products and their
// images. It is a caller of the media storage core: images are persisted
// before the database transaction, and handed to the orphan-cleanup queue
// whenever that transaction fails afterwards.
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vitrinecommerce/api/internal/storage"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")

	// ErrSlugTaken is returned when the slug is already in use.
	ErrSlugTaken = errors.New("slug already in use")
)

// Product is a catalog product with its image paths in display order.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateInput carries the fields for a new product plus its validated
// image uploads.
type CreateInput struct {
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Files       []storage.Upload
}

// UpdateInput carries updatable product fields.
type UpdateInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// Service provides product management on top of the media store.
type Service struct {
	pool   *pgxpool.Pool
	media  *storage.MediaStore
	logger *slog.Logger
}

// NewService creates a product service.
func NewService(pool *pgxpool.Pool, media *storage.MediaStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, media: media, logger: logger}
}

// Create persists the product's images, then inserts the product and image
// rows in one transaction. When the transaction fails after the images were
// already persisted, the descriptors go to the orphan-cleanup queue so the
// objects are not leaked.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	descriptors, err := s.media.PersistMedia(ctx, in.Files, "products")
	if err != nil {
		return Product{}, fmt.Errorf("persisting product images: %w", err)
	}

	p, err := s.insert(ctx, in, descriptors)
	if err != nil {
		s.media.EnqueueOrphanCleanup(descriptors)
		return Product{}, err
	}

	s.logger.Info("product created",
		slog.String("product_id", p.ID.String()),
		slog.Int("images", len(descriptors)),
	)
	return p, nil
}

// AttachImages persists additional images for an existing product and links
// them after the current highest position. Same orphan contract as Create.
func (s *Service) AttachImages(ctx context.Context, productID uuid.UUID, files []storage.Upload) ([]string, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}

	descriptors, err := s.media.PersistMedia(ctx, files, "products")
	if err != nil {
		return nil, fmt.Errorf("persisting product images: %w", err)
	}

	if err := s.insertImages(ctx, productID, descriptors); err != nil {
		s.media.EnqueueOrphanCleanup(descriptors)
		return nil, err
	}

	paths := make([]string, len(descriptors))
	for i, d := range descriptors {
		paths[i] = d.Path
	}
	return paths, nil
}

// Delete removes the product row (images cascade) and schedules async
// deletion of the stored objects, resolved from the paths the rows carried.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	paths, err := s.imagePaths(ctx, id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	targets := s.media.ResolveTargets(storage.PathRefs(paths))
	s.media.EnqueueOrphanCleanup(targets)

	s.logger.Info("product deleted",
		slog.String("product_id", id.String()),
		slog.Int("images", len(targets)),
	)
	return nil
}

// RemoveImage deletes one image row and its stored object synchronously.
func (s *Service) RemoveImage(ctx context.Context, productID uuid.UUID, path string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM product_images WHERE product_id = $1 AND path = $2`,
		productID, path)
	if err != nil {
		return fmt.Errorf("deleting product image row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	targets := s.media.ResolveTargets([]storage.Ref{storage.PathRef(path)})
	if err := s.media.Remove(ctx, targets); err != nil {
		// The row is gone; a leaked object is the accepted trade-off.
		s.logger.Warn("failed to remove image object",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Update modifies product fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (Product, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4::numeric, active = $5, updated_at = $6
		WHERE id = $1`,
		id, in.Name, in.Description, in.Price.String(), in.Active, time.Now().UTC())
	if err != nil {
		return Product{}, fmt.Errorf("updating product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Get returns one product with its images in display order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := s.scanProduct(s.pool.QueryRow(ctx, `
		SELECT id, name, slug, description, price::text, active, created_at, updated_at
		FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("getting product: %w", err)
	}

	p.Images, err = s.imagePaths(ctx, id)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// List returns all products without their images.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, slug, description, price::text, active, created_at, updated_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := s.scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
