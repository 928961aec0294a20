package pipeline

import (
	"context"

	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/vision"
)

// Stage names a pipeline step for progress reporting.
type Stage string

const (
	StageGenerating Stage = "Generating image"
	StageUploading  Stage = "Uploading"
	StageTagging    Stage = "Tagging"
	StageListing    Stage = "Creating listing"
)

// Observer is called when the pipeline enters a stage.
type Observer func(Stage)

// Request is one dream invocation.
type Request struct {
	// ID correlates log lines; one is generated when empty.
	ID        string
	UserID    string
	ChannelID string
	Prompt    string
	Title     string
	Price     string
	Observer  Observer
}

// Result is the outcome of a successful run.
type Result struct {
	RequestID string
	Listing   *models.ProductListing
	Asset     *models.StoredAsset
	Analysis  *vision.Analysis
}

// Pipeline runs a request through generation, upload and listing.
type Pipeline interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// ListingCreator creates storefront products.
type ListingCreator interface {
	CreateProduct(ctx context.Context, listing models.ProductListing) (*models.ProductListing, error)
}

// Recorder persists created listings.
type Recorder interface {
	RecordListing(ctx context.Context, rec models.ListingRecord) (int64, error)
}
