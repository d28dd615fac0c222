package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// legacySynonyms maps free-text category names found on older products onto the
// canonical quota category.
var legacySynonyms = map[string]string{
	"trouser":     "pant",
	"trousers":    "pant",
	"pants":       "pant",
	"blazer":      "jacket",
	"blazers":     "jacket",
	"jackets":     "jacket",
	"accessories": "accessory",
	"shirts":      "shirt",
	"shoes":       "shoe",
	"ties":        "tie",
	"belts":       "belt",
}

// LegacyCategorySynonym returns the canonical category for a legacy free-text name.
func LegacyCategorySynonym(name string) (string, bool) {
	canon, ok := legacySynonyms[strings.ToLower(strings.TrimSpace(name))]
	return canon, ok
}

// CanonicalCategory lowercases a category name and folds legacy synonyms.
func CanonicalCategory(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := legacySynonyms[n]; ok {
		return canon
	}
	return n
}

// CategoryCatalog is the read side of the product/category master data.
type CategoryCatalog interface {
	// CategoryByID returns ErrCategoryNotFound unless the category exists in companyID.
	CategoryByID(ctx context.Context, companyID, categoryID string) (*Category, error)
	// CategoryByName matches case-insensitively within companyID.
	CategoryByName(ctx context.Context, companyID, name string) (*Category, error)
	// ProductByID returns ErrProductNotFound for unknown products.
	ProductByID(ctx context.Context, productID string) (*Product, error)
}

// CategoryResolver maps a product reference onto a canonical quota category.
type CategoryResolver interface {
	Resolve(ctx context.Context, companyID string, ref ProductRef) (string, error)
}

type categoryResolver struct {
	catalog CategoryCatalog
	logger  logrus.FieldLogger
}

// NewCategoryResolver constructs a CategoryResolver over the given catalog.
func NewCategoryResolver(catalog CategoryCatalog, logger logrus.FieldLogger) CategoryResolver {
	return &categoryResolver{
		catalog: catalog,
		logger:  logger.WithField("component", "CategoryResolver"),
	}
}

// Resolve tries, in order: the structured category id scoped to the company, a
// case-insensitive name match, then the legacy synonym table. A bare product id is
// expanded to the product's category fields first.
func (r *categoryResolver) Resolve(ctx context.Context, companyID string, ref ProductRef) (string, error) {
	if ref.CategoryID == "" && strings.TrimSpace(ref.CategoryName) == "" && ref.ProductID != "" {
		p, err := r.catalog.ProductByID(ctx, ref.ProductID)
		if err != nil {
			return "", fmt.Errorf("product %q: %w", ref.ProductID, err)
		}
		ref.CategoryID = deref(p.CategoryID)
		ref.CategoryName = deref(p.LegacyCategory)
	}

	if ref.CategoryID != "" {
		c, err := r.catalog.CategoryByID(ctx, companyID, ref.CategoryID)
		switch {
		case err == nil:
			return CanonicalCategory(c.Name), nil
		case !errors.Is(err, ErrCategoryNotFound):
			return "", fmt.Errorf("category id %q: %w", ref.CategoryID, err)
		}
		r.logger.WithFields(logrus.Fields{
			"company_id":  companyID,
			"category_id": ref.CategoryID,
		}).Debug("structured category not found, falling back to name")
	}

	name := strings.TrimSpace(ref.CategoryName)
	if name != "" {
		c, err := r.catalog.CategoryByName(ctx, companyID, name)
		switch {
		case err == nil:
			return CanonicalCategory(c.Name), nil
		case !errors.Is(err, ErrCategoryNotFound):
			return "", fmt.Errorf("category name %q: %w", name, err)
		}
		if canon, ok := LegacyCategorySynonym(name); ok {
			return canon, nil
		}
	}

	return "", fmt.Errorf("resolve %+v in company %s: %w", ref, companyID, ErrCategoryNotFound)
}
