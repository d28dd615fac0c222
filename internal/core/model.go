package core

import "time"

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Employee is an entitled employee. Eligibility maps a lowercase category name to
// the remaining quota and is mutated only by the EligibilityLedger.
type Employee struct {
	ID           string         `json:"id"`
	EmployeeCode string         `json:"employee_code"`
	CompanyID    string         `json:"company_id"`
	Name         string         `json:"name"`
	Eligibility  map[string]int `json:"eligibility"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Category is a structured product category scoped to a company.
type Category struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// Product is a catalogue item. Older products carry only the free-text
// LegacyCategory; newer ones reference a structured CategoryID.
type Product struct {
	ID             string  `json:"id"`
	CompanyID      string  `json:"company_id"`
	Name           string  `json:"name"`
	CategoryID     *string `json:"category_id,omitempty"`
	LegacyCategory *string `json:"category,omitempty"`
}

// ProductRef identifies what an order or return line refers to. Any combination of
// fields may be set; CategoryID wins over CategoryName, which wins over ProductID.
type ProductRef struct {
	ProductID    string `json:"product_id,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category,omitempty"`
}
