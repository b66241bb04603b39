package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
	"github.com/google/uuid"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, user_id, title, price, COALESCE(image, ''), COALESCE(affiliate_link, ''),
	COALESCE(platform, ''), active, COALESCE(sales_copy, ''), created_at, updated_at`

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Platform == "" {
		p.Platform = models.PlatformOther
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, user_id, title, price, image, affiliate_link, platform, active, sales_copy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Price, p.Image, p.AffiliateLink, p.Platform, p.Active, p.SalesCopy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID returns a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns products with optional filtering, oldest first
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE 1=1"
	args := []any{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.ActiveOnly {
		query += " AND active = 1"
	}

	query += " ORDER BY created_at, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ListActive returns the user's active products
func (r *ProductRepository) ListActive(ctx context.Context, userID string) ([]models.Product, error) {
	return r.List(ctx, models.ProductFilter{UserID: userID, ActiveOnly: true})
}

// Update updates a product
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET title = ?, price = ?, image = ?, affiliate_link = ?, platform = ?, active = ?, sales_copy = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Price, p.Image, p.AffiliateLink, p.Platform, p.Active, p.SalesCopy, p.UpdatedAt, p.ID,
	)
	return err
}

// Delete deletes a product
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var platform string
	err := s.Scan(&p.ID, &p.UserID, &p.Title, &p.Price, &p.Image, &p.AffiliateLink,
		&platform, &p.Active, &p.SalesCopy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Platform = models.Platform(platform)
	return p, nil
}
