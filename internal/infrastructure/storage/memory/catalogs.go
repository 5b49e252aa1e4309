package memory

import (
	"context"
	"sync"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/catalogs"
)

// Catalog implements catalogs.Items, catalogs.Clients and catalogs.PaymentMethods.
type Catalog struct {
	mu       sync.RWMutex
	items    map[string]catalogs.Item
	clients  map[string]catalogs.Client
	payments map[string]catalogs.PaymentMethod
}

var (
	_ catalogs.Items          = (*Catalog)(nil)
	_ catalogs.Clients        = (*Catalog)(nil)
	_ catalogs.PaymentMethods = (*Catalog)(nil)
)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		items:    make(map[string]catalogs.Item),
		clients:  make(map[string]catalogs.Client),
		payments: make(map[string]catalogs.PaymentMethod),
	}
}

// PutItem inserts or replaces an item.
func (c *Catalog) PutItem(item catalogs.Item) {
	c.mu.Lock()
	c.items[item.ID] = item
	c.mu.Unlock()
}

// PutClient inserts or replaces a client.
func (c *Catalog) PutClient(client catalogs.Client) {
	c.mu.Lock()
	c.clients[client.ID] = client
	c.mu.Unlock()
}

// PutPaymentMethod inserts or replaces a payment method.
func (c *Catalog) PutPaymentMethod(pm catalogs.PaymentMethod) {
	c.mu.Lock()
	c.payments[pm.ID] = pm
	c.mu.Unlock()
}

func (c *Catalog) GetItem(_ context.Context, itemID string) (*catalogs.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID)
	}
	return &item, nil
}

func (c *Catalog) GetClient(_ context.Context, clientID string) (*catalogs.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.clients[clientID]
	if !ok {
		return nil, apperror.NewNotFound("client", clientID)
	}
	return &client, nil
}

func (c *Catalog) ConsumeAdvance(_ context.Context, clientID string, amount types.Money) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[clientID]
	if !ok {
		return apperror.NewNotFound("client", clientID)
	}
	if client.AdvanceBalance.LessThan(amount) {
		return apperror.NewBusinessRule(apperror.CodeInsufficientAdvance, "Client advance balance is insufficient").
			WithDetail("client_id", clientID).
			WithDetail("requested", amount.String()).
			WithDetail("available", client.AdvanceBalance.String())
	}
	client.AdvanceBalance = client.AdvanceBalance.Sub(amount)
	c.clients[clientID] = client
	return nil
}

func (c *Catalog) CreditAdvance(_ context.Context, clientID string, amount types.Money) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[clientID]
	if !ok {
		return apperror.NewNotFound("client", clientID)
	}
	client.AdvanceBalance = client.AdvanceBalance.Add(amount)
	c.clients[clientID] = client
	return nil
}

func (c *Catalog) GetPaymentMethod(_ context.Context, methodID string) (*catalogs.PaymentMethod, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pm, ok := c.payments[methodID]
	if !ok {
		return nil, apperror.NewNotFound("payment method", methodID)
	}
	return &pm, nil
}
