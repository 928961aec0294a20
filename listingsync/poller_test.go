package listingsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnicklin/dreamshop/models"
)

type fakeLedger struct {
	mu      sync.Mutex
	active  []models.ListingRecord
	removed []int64
	prices  map[int64]string
}

func (f *fakeLedger) ListActiveListings(context.Context) ([]models.ListingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ListingRecord(nil), f.active...), nil
}

func (f *fakeLedger) MarkListingRemoved(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeLedger) UpdateListingPrice(_ context.Context, id int64, price string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = map[int64]string{}
	}
	f.prices[id] = price
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	remote  map[int64]models.ProductListing
	batches [][]int64
	failOn  int
}

func (f *fakeCatalog) ListProducts(_ context.Context, ids []int64) ([]models.ProductListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, ids)
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return nil, errors.New("shopify unavailable")
	}
	var out []models.ProductListing
	for _, id := range ids {
		if l, ok := f.remote[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func ledgerWith(n int) *fakeLedger {
	l := &fakeLedger{}
	for i := 1; i <= n; i++ {
		l.active = append(l.active, models.ListingRecord{ProductID: int64(i), Price: "19.99"})
	}
	return l
}

func TestSyncOnce(t *testing.T) {
	ledger := ledgerWith(3)
	catalog := &fakeCatalog{remote: map[int64]models.ProductListing{
		1: {ID: 1, Price: "19.99"},
		3: {ID: 3, Price: "25.00"},
	}}
	p := New(Params{Ledger: ledger, Catalog: catalog})

	res, err := p.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Checked: 3, Removed: 1, Repriced: 1}, res)
	assert.Equal(t, []int64{2}, ledger.removed)
	assert.Equal(t, map[int64]string{3: "25.00"}, ledger.prices)
}

func TestSyncOnce_Batches(t *testing.T) {
	ledger := ledgerWith(250)
	catalog := &fakeCatalog{remote: map[int64]models.ProductListing{}}
	for i := int64(1); i <= 250; i++ {
		catalog.remote[i] = models.ProductListing{ID: i, Price: "19.99"}
	}
	p := New(Params{Ledger: ledger, Catalog: catalog})

	res, err := p.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, res.Checked)
	require.Len(t, catalog.batches, 3)
	assert.Len(t, catalog.batches[0], 100)
	assert.Len(t, catalog.batches[1], 100)
	assert.Len(t, catalog.batches[2], 50)
	assert.Empty(t, ledger.removed)
}

func TestSyncOnce_FailedBatchDoesNotRemove(t *testing.T) {
	ledger := ledgerWith(150)
	catalog := &fakeCatalog{remote: map[int64]models.ProductListing{}, failOn: 1}
	p := New(Params{Ledger: ledger, Catalog: catalog})

	res, err := p.SyncOnce(context.Background())
	require.Error(t, err)

	// The first batch failed; only the second batch was reconciled.
	assert.Equal(t, 50, res.Checked)
	assert.Equal(t, 50, res.Removed)
	for _, id := range ledger.removed {
		assert.Greater(t, id, int64(100))
	}
}

func TestStartStop(t *testing.T) {
	ledger := ledgerWith(1)
	catalog := &fakeCatalog{remote: map[int64]models.ProductListing{}}
	p := New(Params{
		Config:  Config{PollInterval: 5 * time.Millisecond},
		Ledger:  ledger,
		Catalog: catalog,
	})

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		return len(ledger.removed) > 0
	}, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()
}

func TestStartRequiresDependencies(t *testing.T) {
	p := New(Params{})
	assert.Error(t, p.Start(context.Background()))
}
