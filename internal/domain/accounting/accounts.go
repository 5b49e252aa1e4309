package accounting

import (
	"strings"

	"salesledger/internal/core/apperror"
)

// ItemAccounts are the accounts configured on a catalog item. Empty fields
// fall back to the plan defaults.
type ItemAccounts struct {
	Income      string `json:"income,omitempty"`
	CostOfSales string `json:"cost_of_sales,omitempty"`
	Inventory   string `json:"inventory,omitempty"`
}

// AccountPlan holds the engine-wide accounts.
type AccountPlan struct {
	Receivable         string
	ClientAdvance      string
	TaxPayable         string
	DefaultIncome      string
	DefaultCostOfSales string
	DefaultInventory   string
}

// Validate requires every account.
func (p AccountPlan) Validate() error {
	fields := []struct{ name, code string }{
		{"receivable", p.Receivable},
		{"client_advance", p.ClientAdvance},
		{"tax_payable", p.TaxPayable},
		{"income", p.DefaultIncome},
		{"cost_of_sales", p.DefaultCostOfSales},
		{"inventory", p.DefaultInventory},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.code) == "" {
			return apperror.NewValidation("account plan is incomplete").WithDetail("account", f.name)
		}
	}
	return nil
}

func (p AccountPlan) resolve(a ItemAccounts) ItemAccounts {
	if a.Income == "" {
		a.Income = p.DefaultIncome
	}
	if a.CostOfSales == "" {
		a.CostOfSales = p.DefaultCostOfSales
	}
	if a.Inventory == "" {
		a.Inventory = p.DefaultInventory
	}
	return a
}
