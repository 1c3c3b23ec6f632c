package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/internal/domains/cart/repository"
)

// fakeItemStore holds cart lines in memory and counts pricing writes.
type fakeItemStore struct {
	items         []model.CartItem
	pricingWrites int
}

func (f *fakeItemStore) GetByID(ctx context.Context, cartID uuid.UUID) (*model.Cart, error) {
	return nil, nil
}
func (f *fakeItemStore) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return nil, nil
}
func (f *fakeItemStore) GetActiveByGuestToken(ctx context.Context, guestToken string) (*model.Cart, error) {
	return nil, nil
}
func (f *fakeItemStore) Create(ctx context.Context, cart *model.Cart) error { return nil }
func (f *fakeItemStore) UpdateStatus(ctx context.Context, cartID uuid.UUID, status model.CartStatus) error {
	return nil
}
func (f *fakeItemStore) UpdateTotals(ctx context.Context, cart *model.Cart) error { return nil }
func (f *fakeItemStore) Delete(ctx context.Context, cartID uuid.UUID) error       { return nil }
func (f *fakeItemStore) Touch(ctx context.Context, cartID uuid.UUID) error        { return nil }

func (f *fakeItemStore) GetItems(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error) {
	out := make([]model.CartItem, len(f.items))
	copy(out, f.items)
	return out, nil
}
func (f *fakeItemStore) GetItemByID(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	return nil, nil
}
func (f *fakeItemStore) UpsertItem(ctx context.Context, item *model.CartItem) (*model.CartItem, error) {
	return item, nil
}
func (f *fakeItemStore) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return nil
}
func (f *fakeItemStore) UpdateItemPricing(ctx context.Context, item *model.CartItem) error {
	f.pricingWrites++
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = *item
		}
	}
	return nil
}
func (f *fakeItemStore) DeleteItem(ctx context.Context, itemID uuid.UUID) error { return nil }
func (f *fakeItemStore) ClearItems(ctx context.Context, cartID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeItemStore) Reparent(ctx context.Context, cartID, userID uuid.UUID) error { return nil }
func (f *fakeItemStore) ApplyMerge(ctx context.Context, plan *repository.MergePlan) error {
	return nil
}
func (f *fakeItemStore) MarkAbandonedIdleSince(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, nil
}
func (f *fakeItemStore) DeleteAbandonedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, nil
}
func (f *fakeItemStore) ListForReminder(ctx context.Context, idleAfter, idleBefore time.Time, limit int) ([]model.Cart, error) {
	return nil, nil
}
func (f *fakeItemStore) MarkReminderSent(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	return nil
}
func (f *fakeItemStore) ListActiveCartIDs(ctx context.Context, checkedBefore time.Time, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

// upstreamFixture serves canned pricing and catalog bulk responses the
// way the real collaborators answer the revalidator.
type upstreamFixture struct {
	prices   map[uuid.UUID]string // variant id -> live unit price
	products map[uuid.UUID]string // product id -> catalog status
}

func (u *upstreamFixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/internal/v1/prices/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VariantIDs []uuid.UUID `json:"variantIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp struct {
			Prices []clients.PriceInfo `json:"prices"`
		}
		for _, id := range req.VariantIDs {
			if price, ok := u.prices[id]; ok {
				resp.Prices = append(resp.Prices, clients.PriceInfo{
					VariantID: id,
					UnitPrice: money(price),
					Currency:  "INR",
					QuotedAt:  time.Now(),
				})
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/internal/v1/products/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []uuid.UUID `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp struct {
			Products []*clients.ProductInfo `json:"products"`
		}
		for _, id := range req.IDs {
			if status, ok := u.products[id]; ok {
				resp.Products = append(resp.Products, &clients.ProductInfo{
					ID:     id,
					Status: status,
				})
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	return httptest.NewServer(mux)
}

func newTestRevalidator(t *testing.T, repo *fakeItemStore, upstream *upstreamFixture) *Revalidator {
	t.Helper()
	srv := upstream.server(t)
	t.Cleanup(srv.Close)

	catalog := clients.NewCatalogClient(srv.URL, "test-key", time.Second)
	pricing := clients.NewPricingClient(srv.URL, "test-key", time.Second)
	return NewRevalidator(repo, catalog, pricing)
}

func freshLine(qty int, price string) model.CartItem {
	item := makeItem(uuid.New(), qty, price, time.Now())
	item.ProductStatus = model.ProductStatusInfo{
		ProductExists: true,
		VariantExists: true,
		LastCheckedAt: time.Now(),
	}
	return item
}

func TestRevalidateCartWithinToleranceUnchanged(t *testing.T) {
	item := freshLine(2, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "249.009"},
		products: map[uuid.UUID]string{item.ProductID: clients.ProductStatusActive},
	}

	result, err := newTestRevalidator(t, repo, upstream).RevalidateCart(context.Background(), item.CartID)

	require.NoError(t, err)
	assert.True(t, result.Clean())
	assert.True(t, repo.items[0].UnitPrice.Equal(money("249.00")))
	assert.False(t, repo.items[0].PriceChanged)
}

func TestRevalidateCartFlagsDriftBeyondTolerance(t *testing.T) {
	item := freshLine(2, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "249.011"},
		products: map[uuid.UUID]string{item.ProductID: clients.ProductStatusActive},
	}

	result, err := newTestRevalidator(t, repo, upstream).RevalidateCart(context.Background(), item.CartID)

	require.NoError(t, err)
	require.Len(t, result.PriceChanges, 1)
	change := result.PriceChanges[0]
	assert.True(t, change.OldPrice.Equal(money("249.00")))
	assert.True(t, change.NewPrice.Equal(money("249.011")))
	assert.True(t, change.Delta.Equal(money("0.022")), "line delta covers both units")

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, model.WarningPriceIncrease, result.Warnings[0].Code)
	assert.Equal(t, model.SeverityMedium, result.Warnings[0].Severity)

	updated := repo.items[0]
	assert.True(t, updated.PriceChanged)
	assert.True(t, updated.UnitPrice.Equal(money("249.011")))
	// Line totals round to 2dp even when the unit price carries more.
	assert.True(t, updated.LineTotal.Equal(money("498.02")))
	require.NotNil(t, updated.PriceChange)
	assert.True(t, updated.PriceChange.OldPrice.Equal(money("249.00")))
}

func TestRevalidateCartPriceDropWarnsLowSeverity(t *testing.T) {
	item := freshLine(1, "500.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "450.00"},
		products: map[uuid.UUID]string{item.ProductID: clients.ProductStatusActive},
	}

	result, err := newTestRevalidator(t, repo, upstream).RevalidateCart(context.Background(), item.CartID)

	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, model.WarningPriceDecrease, result.Warnings[0].Code)
	assert.Equal(t, model.SeverityLow, result.Warnings[0].Severity)
	assert.True(t, result.Warnings[0].Amount.Equal(money("50.00")))
}

func TestRevalidateCartMarksMissingProductUnavailable(t *testing.T) {
	item := freshLine(1, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "249.00"},
		products: map[uuid.UUID]string{}, // catalog no longer knows the product
	}

	result, err := newTestRevalidator(t, repo, upstream).RevalidateCart(context.Background(), item.CartID)

	require.NoError(t, err)
	require.Len(t, result.Unavailable, 1)
	assert.Equal(t, item.ID, result.Unavailable[0].ItemID)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, model.WarningItemsUnavailable, result.Warnings[0].Code)
	assert.Equal(t, model.SeverityHigh, result.Warnings[0].Severity)

	assert.False(t, repo.items[0].ProductStatus.ProductExists)
}

func TestRevalidateCartDiscontinuedProductUnavailable(t *testing.T) {
	item := freshLine(1, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "249.00"},
		products: map[uuid.UUID]string{item.ProductID: clients.ProductStatusDiscontinued},
	}

	result, err := newTestRevalidator(t, repo, upstream).RevalidateCart(context.Background(), item.CartID)

	require.NoError(t, err)
	require.Len(t, result.Unavailable, 1)
}

func TestRevalidateCartIdempotent(t *testing.T) {
	item := freshLine(2, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}
	upstream := &upstreamFixture{
		prices:   map[uuid.UUID]string{item.VariantID: "260.00"},
		products: map[uuid.UUID]string{item.ProductID: clients.ProductStatusActive},
	}
	revalidator := newTestRevalidator(t, repo, upstream)

	first, err := revalidator.RevalidateCart(context.Background(), item.CartID)
	require.NoError(t, err)
	require.Len(t, first.PriceChanges, 1)

	// Rerunning against the refreshed lines finds nothing to fix
	second, err := revalidator.RevalidateCart(context.Background(), item.CartID)
	require.NoError(t, err)
	assert.True(t, second.Clean())
}

func TestRevalidateCartPricingOutageLeavesCartUntouched(t *testing.T) {
	item := freshLine(1, "249.00")
	repo := &fakeItemStore{items: []model.CartItem{item}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	catalog := clients.NewCatalogClient(srv.URL, "test-key", time.Second)
	pricing := clients.NewPricingClient(srv.URL, "test-key", time.Second)
	revalidator := NewRevalidator(repo, catalog, pricing)

	_, err := revalidator.RevalidateCart(context.Background(), item.CartID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, clients.ErrPricingUnavailable))
	assert.Zero(t, repo.pricingWrites)
	assert.True(t, repo.items[0].UnitPrice.Equal(money("249.00")))
}

func TestRevalidateCartEmptyCart(t *testing.T) {
	repo := &fakeItemStore{}
	result, err := newTestRevalidator(t, repo, &upstreamFixture{}).RevalidateCart(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.True(t, result.Clean())
}
