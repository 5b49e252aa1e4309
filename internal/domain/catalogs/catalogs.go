// Package catalogs declares the collaborator lookups the engine consumes:
// items, clients with their advance balance, and payment methods.
package catalogs

import (
	"context"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
)

// Item is a catalog entry as the engine sees it.
type Item struct {
	ID         string                  `json:"id" db:"id"`
	Name       string                  `json:"name" db:"name"`
	Price      types.Money             `json:"price" db:"price"`
	Cost       types.Money             `json:"cost" db:"cost"`
	TaxPct     types.Percent           `json:"tax_pct" db:"tax_pct"`
	Controlled bool                    `json:"controlled" db:"controlled"`
	Accounts   accounting.ItemAccounts `json:"accounts" db:"-"`
}

// Client is a customer with a prepaid advance balance.
type Client struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	AdvanceBalance types.Money `json:"advance_balance" db:"advance_balance"`
}

// PaymentMethod maps a tender (cash, card, transfer) to its ledger account.
type PaymentMethod struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Account string `json:"account" db:"account_code"`
}

// Items resolves catalog items. Unknown ids yield a NOT_FOUND AppError.
type Items interface {
	GetItem(ctx context.Context, itemID string) (*Item, error)
}

// Clients resolves clients and moves their advance balance.
type Clients interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ConsumeAdvance lowers the balance; it fails with INSUFFICIENT_ADVANCE
	// rather than going below zero.
	ConsumeAdvance(ctx context.Context, clientID string, amount types.Money) error

	CreditAdvance(ctx context.Context, clientID string, amount types.Money) error
}

// PaymentMethods resolves payment methods.
type PaymentMethods interface {
	GetPaymentMethod(ctx context.Context, methodID string) (*PaymentMethod, error)
}
