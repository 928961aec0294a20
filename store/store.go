package store

import (
	"context"
	"errors"
	"time"

	"github.com/tnicklin/dreamshop/models"
)

// ErrNotFound is returned when no listing matches.
var ErrNotFound = errors.New("listing not found")

const defaultDebounce = 5 * time.Second

// Config holds ledger configuration. An empty Path keeps the ledger in
// memory only.
type Config struct {
	Path          string        `yaml:"path"`
	FlushDebounce time.Duration `yaml:"flush_debounce"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.FlushDebounce <= 0 {
		c.FlushDebounce = defaultDebounce
	}
}

type Store interface {
	Open(ctx context.Context) error
	Close() error

	RestoreFromDisk(ctx context.Context, path string) error
	FlushToDisk(ctx context.Context, path string) error

	RecordListing(ctx context.Context, rec models.ListingRecord) (int64, error)
	MarkListingRemoved(ctx context.Context, productID int64) error
	UpdateListingPrice(ctx context.Context, productID int64, price string) error

	GetListingByProductID(ctx context.Context, productID int64) (*models.ListingRecord, error)
	ListListingsByUser(ctx context.Context, userID string, limit int) ([]models.ListingRecord, error)
	ListActiveListings(ctx context.Context) ([]models.ListingRecord, error)
}
