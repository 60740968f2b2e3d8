package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// The environment-key client is cached under the empty key so no real tenant
// id can collide with it. The first-account fallback is cached under that
// account's id.
const legacyCacheKey = ""

// ClientCache holds one shipping client per tenant for the life of the
// process. Entries leave only through Invalidate or InvalidateAll.
type ClientCache struct {
	clients sync.Map
}

func NewClientCache() *ClientCache {
	return &ClientCache{}
}

// GetOrCreate returns the cached client for key, building it with create on
// a miss. Concurrent misses may each call create; only one result is kept.
func (c *ClientCache) GetOrCreate(key string, create func() (ShippingClient, error)) (ShippingClient, error) {
	if v, ok := c.clients.Load(key); ok {
		return v.(ShippingClient), nil
	}

	client, err := create()
	if err != nil {
		return nil, err
	}

	actual, _ := c.clients.LoadOrStore(key, client)
	return actual.(ShippingClient), nil
}

func (c *ClientCache) Invalidate(key string) {
	c.clients.Delete(key)
}

func (c *ClientCache) InvalidateAll() {
	c.clients.Range(func(k, _ any) bool {
		c.clients.Delete(k)
		return true
	})
}

func (c *ClientCache) Len() int {
	n := 0
	c.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// LegacyConfig is the single-tenant configuration used when no tenant id is
// supplied.
type LegacyConfig struct {
	ShippingAPIKey string
	PrintAPIKey    string
	PrinterID      string
	WebhookSecret  string
}

// Tenant is a resolved account with its printers and shipping client.
// ID is empty for the legacy tenant.
type Tenant struct {
	ID       string
	Name     string
	Printers []PrinterConfig
	Client   ShippingClient
}

// DefaultPrinter returns the first default printer, else the first active
// one, else nil.
func DefaultPrinter(printers []PrinterConfig) *PrinterConfig {
	for i := range printers {
		if printers[i].IsDefault && printers[i].Active {
			return &printers[i]
		}
	}
	for i := range printers {
		if printers[i].Active {
			return &printers[i]
		}
	}
	return nil
}

type Resolver struct {
	store     AccountStore
	cache     *ClientCache
	newClient ShippingClientFactory
	legacy    LegacyConfig
	logger    *zap.Logger
}

func NewResolver(store AccountStore, newClient ShippingClientFactory, legacy LegacyConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		cache:     NewClientCache(),
		newClient: newClient,
		legacy:    legacy,
		logger:    logger,
	}
}

// Resolve loads the tenant's account and printers and returns it with a
// cached shipping client. An empty tenantID selects the legacy tenant.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		return r.resolveLegacy(ctx)
	}

	account, err := r.activeAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	printers, err := r.store.ListPrinters(ctx, tenantID)
	if err != nil {
		return nil, stageError(KindTransientIO, StateTrackerResolved, fmt.Errorf("failed to load printers: %w", err))
	}

	client, err := r.client(tenantID, account.Credential)
	if err != nil {
		return nil, err
	}

	return &Tenant{
		ID:       tenantID,
		Name:     account.Name,
		Printers: printers,
		Client:   client,
	}, nil
}

func (r *Resolver) activeAccount(ctx context.Context, tenantID string) (*TenantAccount, error) {
	account, err := r.store.GetAccount(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, stageError(KindLookup, StateTrackerResolved, fmt.Errorf("account %s not configured: %w", tenantID, ErrAccountNotFound))
		}
		return nil, stageError(KindTransientIO, StateTrackerResolved, fmt.Errorf("failed to load account: %w", err))
	}
	if !account.Active {
		return nil, stageError(KindLookup, StateTrackerResolved, fmt.Errorf("account %s not configured: %w", tenantID, ErrAccountNotFound))
	}
	return account, nil
}

func (r *Resolver) resolveLegacy(ctx context.Context) (*Tenant, error) {
	if r.legacy.ShippingAPIKey != "" {
		client, err := r.client(legacyCacheKey, r.legacy.ShippingAPIKey)
		if err != nil {
			return nil, err
		}
		return &Tenant{Client: client, Printers: r.legacyPrinters()}, nil
	}

	// Without an environment key the first active account stands in,
	// together with its printers.
	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return nil, stageError(KindTransientIO, StateTrackerResolved, fmt.Errorf("failed to load accounts: %w", err))
	}
	if len(accounts) == 0 {
		return nil, stageError(KindConfiguration, StateTrackerResolved, errors.New("no shipping configuration found"))
	}

	account := accounts[0]
	printers, err := r.store.ListPrinters(ctx, account.ID)
	if err != nil {
		return nil, stageError(KindTransientIO, StateTrackerResolved, fmt.Errorf("failed to load printers: %w", err))
	}
	if legacy := r.legacyPrinters(); len(legacy) > 0 {
		printers = legacy
	}

	client, err := r.client(account.ID, account.Credential)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("legacy request served by first active account", zap.String("account_id", account.ID))
	return &Tenant{Name: account.Name, Printers: printers, Client: client}, nil
}

func (r *Resolver) legacyPrinters() []PrinterConfig {
	if r.legacy.PrintAPIKey == "" || r.legacy.PrinterID == "" {
		return nil
	}
	return []PrinterConfig{{
		ID:         "legacy",
		Name:       "default",
		Credential: r.legacy.PrintAPIKey,
		DeviceID:   r.legacy.PrinterID,
		IsDefault:  true,
		Active:     true,
	}}
}

func (r *Resolver) client(key, credential string) (ShippingClient, error) {
	client, err := r.cache.GetOrCreate(key, func() (ShippingClient, error) {
		if credential == "" {
			return nil, ErrMissingCredential
		}
		r.logger.Info("creating shipping client", zap.String("account_id", key))
		return r.newClient(credential)
	})
	if err != nil {
		return nil, stageError(KindConfiguration, StateTrackerResolved, fmt.Errorf("failed to create shipping client: %w", err))
	}
	return client, nil
}

// WebhookSecret returns the secret webhook senders sign with for the tenant.
// An unknown tenant yields an empty secret.
func (r *Resolver) WebhookSecret(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return r.legacy.WebhookSecret, nil
	}
	account, err := r.store.GetAccount(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil
		}
		return "", err
	}
	return account.WebhookSecret, nil
}

// Invalidate drops the cached client for tenantID. An empty id drops the
// environment-key client.
func (r *Resolver) Invalidate(tenantID string) {
	r.cache.Invalidate(tenantID)
	r.logger.Info("shipping client invalidated", zap.String("account_id", tenantID))
}

func (r *Resolver) InvalidateAll() {
	r.cache.InvalidateAll()
	r.logger.Info("all shipping clients invalidated")
}

func (r *Resolver) Cache() *ClientCache {
	return r.cache
}
