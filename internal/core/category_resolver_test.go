package core_test

import (
	"context"
	"errors"
	"testing"

	"procurement-ledger/internal/config"
	"procurement-ledger/internal/core"
)

func testCatalog() *memCatalog {
	return &memCatalog{
		categories: []core.Category{
			{ID: "cat-shirt", CompanyID: "acme", Name: "Shirt"},
			{ID: "cat-pant", CompanyID: "acme", Name: "Pant"},
			{ID: "cat-other", CompanyID: "globex", Name: "Jacket"},
		},
		products: map[string]core.Product{
			"p-oxford":  {ID: "p-oxford", CompanyID: "acme", Name: "Oxford", CategoryID: strPtr("cat-shirt")},
			"p-chino":   {ID: "p-chino", CompanyID: "acme", Name: "Chino", LegacyCategory: strPtr("Trousers")},
			"p-blazer":  {ID: "p-blazer", CompanyID: "acme", Name: "Navy Blazer", LegacyCategory: strPtr("blazer")},
			"p-nothing": {ID: "p-nothing", CompanyID: "acme", Name: "Mystery"},
		},
	}
}

func TestCategoryResolver_Resolve(t *testing.T) {
	resolver := core.NewCategoryResolver(testCatalog(), config.NewDiscardLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		ref     core.ProductRef
		want    string
		wantErr error
	}{
		{"structured id", core.ProductRef{CategoryID: "cat-shirt"}, "shirt", nil},
		{"id wins over name", core.ProductRef{CategoryID: "cat-pant", CategoryName: "Shirt"}, "pant", nil},
		{"id from another company falls back to name", core.ProductRef{CategoryID: "cat-other", CategoryName: "shirt"}, "shirt", nil},
		{"name is case-insensitive", core.ProductRef{CategoryName: "  SHIRT "}, "shirt", nil},
		{"legacy synonym", core.ProductRef{CategoryName: "Trousers"}, "pant", nil},
		{"product with structured category", core.ProductRef{ProductID: "p-oxford"}, "shirt", nil},
		{"product with legacy category", core.ProductRef{ProductID: "p-chino"}, "pant", nil},
		{"product with synonym only", core.ProductRef{ProductID: "p-blazer"}, "jacket", nil},
		{"product without category", core.ProductRef{ProductID: "p-nothing"}, "", core.ErrCategoryNotFound},
		{"unknown product", core.ProductRef{ProductID: "p-missing"}, "", core.ErrProductNotFound},
		{"unknown name", core.ProductRef{CategoryName: "hat"}, "", core.ErrCategoryNotFound},
		{"empty ref", core.ProductRef{}, "", core.ErrCategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(ctx, "acme", tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (category %q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCategoryResolver_CatalogFailureIsNotNotFound(t *testing.T) {
	catalog := testCatalog()
	catalog.fail = errors.New("connection reset")
	resolver := core.NewCategoryResolver(catalog, config.NewDiscardLogger())

	_, err := resolver.Resolve(context.Background(), "acme", core.ProductRef{CategoryID: "cat-shirt"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, core.ErrCategoryNotFound) {
		t.Errorf("infrastructure failure must not be reported as not found: %v", err)
	}
}

func TestCanonicalCategory(t *testing.T) {
	cases := map[string]string{
		"Shirt":       "shirt",
		" TROUSERS ":  "pant",
		"Accessories": "accessory",
		"cap":         "cap",
	}
	for in, want := range cases {
		if got := core.CanonicalCategory(in); got != want {
			t.Errorf("CanonicalCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
