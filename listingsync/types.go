package listingsync

import (
	"context"

	"github.com/tnicklin/dreamshop/models"
)

// Syncer reconciles the local ledger with the storefront.
type Syncer interface {
	Start(ctx context.Context) error
	Stop()
	SyncOnce(ctx context.Context) (Result, error)
}

// Ledger is the part of the store the sync needs.
type Ledger interface {
	ListActiveListings(ctx context.Context) ([]models.ListingRecord, error)
	MarkListingRemoved(ctx context.Context, productID int64) error
	UpdateListingPrice(ctx context.Context, productID int64, price string) error
}

// Catalog is the part of the storefront client the sync needs.
type Catalog interface {
	ListProducts(ctx context.Context, ids []int64) ([]models.ProductListing, error)
}

// Result summarizes one sync pass.
type Result struct {
	Checked  int
	Removed  int
	Repriced int
}
