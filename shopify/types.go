package shopify

import (
	"context"
	"errors"

	"github.com/tnicklin/dreamshop/models"
)

// ErrNotFound is wrapped by errors for products that do not exist.
var ErrNotFound = errors.New("product not found")

// Catalog manages products on the storefront.
type Catalog interface {
	CreateProduct(ctx context.Context, listing models.ProductListing) (*models.ProductListing, error)
	GetProduct(ctx context.Context, id int64) (*models.ProductListing, error)
	UpdateProduct(ctx context.Context, id int64, update ProductUpdate) (*models.ProductListing, error)
	DeleteProduct(ctx context.Context, id int64) error
	// ListProducts returns the products among ids that still exist.
	ListProducts(ctx context.Context, ids []int64) ([]models.ProductListing, error)
}

// ProductUpdate holds the fields to change; nil fields are left alone.
type ProductUpdate struct {
	Title  *string
	Price  *string
	Status *string
}

type product struct {
	ID          int64          `json:"id,omitempty"`
	Title       string         `json:"title,omitempty"`
	BodyHTML    string         `json:"body_html,omitempty"`
	Vendor      string         `json:"vendor,omitempty"`
	ProductType string         `json:"product_type,omitempty"`
	Handle      string         `json:"handle,omitempty"`
	Status      string         `json:"status,omitempty"`
	Tags        string         `json:"tags,omitempty"`
	Variants    []variant      `json:"variants,omitempty"`
	Images      []productImage `json:"images,omitempty"`
}

type variant struct {
	ID                  int64  `json:"id,omitempty"`
	Price               string `json:"price,omitempty"`
	SKU                 string `json:"sku,omitempty"`
	InventoryQuantity   int    `json:"inventory_quantity,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
}

type productImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src"`
}

type productEnvelope struct {
	Product product `json:"product"`
}

type productsEnvelope struct {
	Products []product `json:"products"`
}
