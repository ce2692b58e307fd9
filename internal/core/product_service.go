package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductService manages the catalog: products, categories and brands.
// Stock is deliberately absent from the mutation surface here — it moves
// only through purchase and sale operations.
type ProductService interface {
	CreateProduct(ctx context.Context, name, description, imageURL string, categoryID, brandID int) (*Product, error)
	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetProducts(ctx context.Context) ([]Product, error)
	// UpdateProduct edits descriptive fields. Stock and code are not editable.
	UpdateProduct(ctx context.Context, productID int, name, description, imageURL string, categoryID, brandID int) (*Product, error)
	SetProductActive(ctx context.Context, productID int, active bool) error

	CreateCategory(ctx context.Context, name, description string) (*Category, error)
	GetCategories(ctx context.Context) ([]Category, error)
	CreateBrand(ctx context.Context, name string) (*Brand, error)
	GetBrands(ctx context.Context) ([]Brand, error)
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func validateProductFields(name, description string, categoryID, brandID int) error {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 100 {
		return ValidationErrorf("product name must be between 3 and 100 characters")
	}
	if len(strings.TrimSpace(description)) < 5 {
		return ValidationErrorf("product description is required")
	}
	if categoryID <= 0 || brandID <= 0 {
		return ValidationErrorf("category and brand are required")
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, name, description, imageURL string, categoryID, brandID int) (*Product, error) {
	if err := validateProductFields(name, description, categoryID, brandID); err != nil {
		return nil, err
	}

	var p Product
	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var brandName string
		err := tx.QueryRow(ctx, "SELECT name FROM brands WHERE id = $1", brandID).Scan(&brandName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("brand %d does not exist", brandID)
			}
			return fmt.Errorf("failed to resolve brand %d: %w", brandID, err)
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)", categoryID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to verify category: %w", err)
		}
		if !exists {
			return NotFoundErrorf("category %d does not exist", categoryID)
		}

		code, err := nextProductCodeTx(ctx, tx, name, brandName)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO products (code, name, description, image_url, category_id, brand_id, stock, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, 0, true)
			RETURNING id, code, name, description, image_url, category_id, brand_id, stock, is_active, created_at
		`, code, strings.TrimSpace(name), description, imageURL, categoryID, brandID).Scan(
			&p.ID, &p.Code, &p.Name, &p.Description, &p.ImageURL,
			&p.CategoryID, &p.BrandID, &p.Stock, &p.IsActive, &p.CreatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// nextProductCodeTx generates a product code "NAM-BRA-007" from the first
// three letters of the product and brand names and a global counter bumped
// inside the caller's transaction.
func nextProductCodeTx(ctx context.Context, tx pgx.Tx, productName, brandName string) (string, error) {
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO product_code_counters (id, count)
		VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET count = product_code_counters.count + 1
		RETURNING count
	`).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to advance product code counter: %w", err)
	}
	return fmt.Sprintf("%s-%s-%03d", codePart(productName), codePart(brandName), n), nil
}

func codePart(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

func (s *productService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, description, image_url, category_id, brand_id, stock, is_active, created_at
		FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.ImageURL,
		&p.CategoryID, &p.BrandID, &p.Stock, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("product %d does not exist", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *productService) GetProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, description, image_url, category_id, brand_id, stock, is_active, created_at
		FROM products
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.ImageURL,
			&p.CategoryID, &p.BrandID, &p.Stock, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *productService) UpdateProduct(ctx context.Context, productID int, name, description, imageURL string, categoryID, brandID int) (*Product, error) {
	if err := validateProductFields(name, description, categoryID, brandID); err != nil {
		return nil, err
	}

	var p Product
	err := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $1, description = $2, image_url = $3, category_id = $4, brand_id = $5
		WHERE id = $6
		RETURNING id, code, name, description, image_url, category_id, brand_id, stock, is_active, created_at
	`, strings.TrimSpace(name), description, imageURL, categoryID, brandID, productID).Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &p.ImageURL,
		&p.CategoryID, &p.BrandID, &p.Stock, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("product %d does not exist", productID)
		}
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *productService) SetProductActive(ctx context.Context, productID int, active bool) error {
	ct, err := s.pool.Exec(ctx, "UPDATE products SET is_active = $1 WHERE id = $2", active, productID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundErrorf("product %d does not exist", productID)
	}
	return nil
}

func (s *productService) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ValidationErrorf("category name is required")
	}
	var c Category
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description, is_active)
		VALUES ($1, $2, true)
		RETURNING id, name, description, is_active
	`, strings.TrimSpace(name), description).Scan(&c.ID, &c.Name, &c.Description, &c.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

func (s *productService) GetCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, description, is_active FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *productService) CreateBrand(ctx context.Context, name string) (*Brand, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ValidationErrorf("brand name is required")
	}
	var b Brand
	err := s.pool.QueryRow(ctx, `
		INSERT INTO brands (name, is_active)
		VALUES ($1, true)
		RETURNING id, name, is_active
	`, strings.TrimSpace(name)).Scan(&b.ID, &b.Name, &b.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	return &b, nil
}

func (s *productService) GetBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, is_active FROM brands ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer rows.Close()

	var brands []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}
