package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierService manages supplier master data.
type SupplierService interface {
	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)
	GetSupplier(ctx context.Context, supplierID int) (*Supplier, error)
	GetSuppliers(ctx context.Context) ([]Supplier, error)
	UpdateSupplier(ctx context.Context, supplierID int, input SupplierInput) (*Supplier, error)
	SetSupplierActive(ctx context.Context, supplierID int, active bool) error
}

type SupplierInput struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

type supplierService struct {
	pool *pgxpool.Pool
}

// NewSupplierService constructs a SupplierService backed by PostgreSQL.
func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

func (s *supplierService) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ValidationErrorf("supplier name is required")
	}

	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_name, email, phone, address, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, name, contact_name, email, phone, address, is_active, created_at
	`, strings.TrimSpace(input.Name), input.ContactName, input.Email, input.Phone, input.Address).Scan(
		&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.Phone, &sup.Address,
		&sup.IsActive, &sup.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier %q: %w", input.Name, err)
	}
	return &sup, nil
}

func (s *supplierService) GetSupplier(ctx context.Context, supplierID int) (*Supplier, error) {
	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, contact_name, email, phone, address, is_active, created_at
		FROM suppliers WHERE id = $1
	`, supplierID).Scan(
		&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.Phone, &sup.Address,
		&sup.IsActive, &sup.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("supplier %d does not exist", supplierID)
		}
		return nil, fmt.Errorf("failed to fetch supplier %d: %w", supplierID, err)
	}
	return &sup, nil
}

func (s *supplierService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_name, email, phone, address, is_active, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.Phone,
			&sup.Address, &sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *supplierService) UpdateSupplier(ctx context.Context, supplierID int, input SupplierInput) (*Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ValidationErrorf("supplier name is required")
	}

	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		UPDATE suppliers
		SET name = $1, contact_name = $2, email = $3, phone = $4, address = $5
		WHERE id = $6
		RETURNING id, name, contact_name, email, phone, address, is_active, created_at
	`, strings.TrimSpace(input.Name), input.ContactName, input.Email, input.Phone, input.Address, supplierID).Scan(
		&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.Phone, &sup.Address,
		&sup.IsActive, &sup.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("supplier %d does not exist", supplierID)
		}
		return nil, fmt.Errorf("failed to update supplier %d: %w", supplierID, err)
	}
	return &sup, nil
}

func (s *supplierService) SetSupplierActive(ctx context.Context, supplierID int, active bool) error {
	ct, err := s.pool.Exec(ctx, "UPDATE suppliers SET is_active = $1 WHERE id = $2", active, supplierID)
	if err != nil {
		return fmt.Errorf("failed to update supplier %d: %w", supplierID, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundErrorf("supplier %d does not exist", supplierID)
	}
	return nil
}
