package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vitrinecommerce/api/internal/storage"
)

// insert writes the product row and its image rows in one transaction.
func (s *Service) insert(ctx context.Context, in CreateInput, descriptors []storage.Descriptor) (Product, error) {
	now := time.Now().UTC()
	p := Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		Price:       in.Price,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, name, slug, description, price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
		p.ID, p.Name, p.Slug, p.Description, p.Price.String(), p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrSlugTaken
		}
		return Product{}, fmt.Errorf("inserting product: %w", err)
	}

	if err := insertImageRows(ctx, tx, p.ID, descriptors, 0); err != nil {
		return Product{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("committing product: %w", err)
	}

	for _, d := range descriptors {
		p.Images = append(p.Images, d.Path)
	}
	return p, nil
}

// insertImages links already-persisted descriptors to an existing product,
// appending after the current highest position.
func (s *Service) insertImages(ctx context.Context, productID uuid.UUID, descriptors []storage.Descriptor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int32
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM product_images WHERE product_id = $1`,
		productID).Scan(&next)
	if err != nil {
		return fmt.Errorf("getting next image position: %w", err)
	}

	if err := insertImageRows(ctx, tx, productID, descriptors, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing product images: %w", err)
	}
	return nil
}

func insertImageRows(ctx context.Context, tx pgx.Tx, productID uuid.UUID, descriptors []storage.Descriptor, start int32) error {
	now := time.Now().UTC()
	for i, d := range descriptors {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_images (id, product_id, path, position, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), productID, d.Path, start+int32(i), now)
		if err != nil {
			return fmt.Errorf("inserting product image: %w", err)
		}
	}
	return nil
}

func (s *Service) imagePaths(ctx context.Context, productID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path FROM product_images WHERE product_id = $1 ORDER BY position`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("listing product images: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning image path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *Service) scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("parsing price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
