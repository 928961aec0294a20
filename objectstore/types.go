package objectstore

import (
	"context"

	"github.com/tnicklin/dreamshop/models"
)

// Uploader stores generated images and returns their public location.
type Uploader interface {
	Upload(ctx context.Context, img *models.GeneratedImage) (*models.StoredAsset, error)
}
