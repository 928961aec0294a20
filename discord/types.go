package discord

import (
	"context"

	"github.com/tnicklin/dreamshop/listingsync"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/pipeline"
	"github.com/tnicklin/dreamshop/shopify"
)

// Discord defines the interface for the Discord client.
type Discord interface {
	WriteMessage(channelID, msg string) error
	Start(ctx context.Context) error
	Stop() error
}

// Ledger is the part of the listing store the commands read and update.
type Ledger interface {
	ListListingsByUser(ctx context.Context, userID string, limit int) ([]models.ListingRecord, error)
	GetListingByProductID(ctx context.Context, productID int64) (*models.ListingRecord, error)
	MarkListingRemoved(ctx context.Context, productID int64) error
	UpdateListingPrice(ctx context.Context, productID int64, price string) error
}

// ProductAdmin is the part of the catalog client the admin commands use.
type ProductAdmin interface {
	UpdateProduct(ctx context.Context, id int64, update shopify.ProductUpdate) (*models.ProductListing, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Syncer runs an on-demand listing sync.
type Syncer interface {
	SyncOnce(ctx context.Context) (listingsync.Result, error)
}

// reporter delivers the progress and outcome of one dream to the user.
type reporter interface {
	Progress(stage pipeline.Stage)
	Done(res *pipeline.Result)
	Fail(err error)
	Notice(msg string)
}
