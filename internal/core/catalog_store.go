package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgCatalog struct {
	pool *pgxpool.Pool
}

// NewCategoryCatalog constructs a CategoryCatalog backed by PostgreSQL.
func NewCategoryCatalog(pool *pgxpool.Pool) CategoryCatalog {
	return &pgCatalog{pool: pool}
}

func (c *pgCatalog) CategoryByID(ctx context.Context, companyID, categoryID string) (*Category, error) {
	cat := &Category{}
	err := c.pool.QueryRow(ctx, `
		SELECT id, company_id, name
		FROM categories
		WHERE id = $1 AND company_id = $2`,
		categoryID, companyID,
	).Scan(&cat.ID, &cat.CompanyID, &cat.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("fetch category %s: %w", categoryID, err)
	}
	return cat, nil
}

func (c *pgCatalog) CategoryByName(ctx context.Context, companyID, name string) (*Category, error) {
	cat := &Category{}
	err := c.pool.QueryRow(ctx, `
		SELECT id, company_id, name
		FROM categories
		WHERE company_id = $1 AND lower(name) = lower($2)
		ORDER BY id
		LIMIT 1`,
		companyID, name,
	).Scan(&cat.ID, &cat.CompanyID, &cat.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("fetch category %q: %w", name, err)
	}
	return cat, nil
}

func (c *pgCatalog) ProductByID(ctx context.Context, productID string) (*Product, error) {
	p := &Product{}
	err := c.pool.QueryRow(ctx, `
		SELECT id, company_id, name, category_id, category
		FROM products
		WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.CompanyID, &p.Name, &p.CategoryID, &p.LegacyCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	return p, nil
}
