package shopify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
)

var _ Catalog = (*Client)(nil)

const maxListIDs = 250

// Client is a Shopify Admin REST API client.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger logger.Logger
}

type Params struct {
	Config     Config
	HTTPClient *http.Client
	Logger     logger.Logger
}

func New(p Params) *Client {
	cfg := p.Config
	cfg.Defaults()

	hc := resty.New()
	if p.HTTPClient != nil {
		hc = resty.NewWithClient(p.HTTPClient)
	}
	hc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeaders(map[string]string{
			"X-Shopify-Access-Token": cfg.AccessToken,
			"Content-Type":           "application/json",
			"Accept":                 "application/json",
		})

	return &Client{
		http:   hc,
		cfg:    cfg,
		logger: logger.OrNop(p.Logger),
	}
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	r := c.http.R().
		SetContext(ctx).
		SetError(&apiError{})
	if result != nil {
		r.SetResult(result)
	}
	return r
}

// CreateProduct creates a product with one variant and the listing's image.
// Empty vendor and product type fall back to the configured defaults.
func (c *Client) CreateProduct(ctx context.Context, listing models.ProductListing) (*models.ProductListing, error) {
	const op = "shopify.create_product"
	if err := listing.Validate(); err != nil {
		return nil, errs.E(errs.InvalidArgument, op, err)
	}

	vendor := listing.Vendor
	if vendor == "" {
		vendor = c.cfg.Vendor
	}
	productType := listing.ProductType
	if productType == "" {
		productType = c.cfg.ProductType
	}

	body := productEnvelope{Product: product{
		Title:       listing.Title,
		BodyHTML:    bodyHTML(listing.Description),
		Vendor:      vendor,
		ProductType: productType,
		Status:      c.cfg.Status,
		Tags:        strings.Join(listing.Tags, ", "),
		Variants: []variant{{
			Price:               listing.Price,
			InventoryQuantity:   c.cfg.InventoryQuantity,
			InventoryManagement: "shopify",
		}},
		Images: []productImage{{Src: listing.ImageURL}},
	}}

	var out productEnvelope
	res, err := c.req(ctx, &out).
		SetBody(body).
		Post("/products.json")
	if err := checkResponse(op, res, err); err != nil {
		return nil, err
	}

	created := c.toListing(out.Product)
	if created.ImageURL == "" {
		created.ImageURL = listing.ImageURL
	}
	c.logger.InfoW("product created", "product_id", created.ID, "title", created.Title, "handle", created.Handle)
	return created, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.ProductListing, error) {
	var out productEnvelope
	res, err := c.req(ctx, &out).
		Get(fmt.Sprintf("/products/%d.json", id))
	if err := checkResponse("shopify.get_product", res, err); err != nil {
		return nil, err
	}
	return c.toListing(out.Product), nil
}

// UpdateProduct applies update to the product. A price change is written to
// the product's first variant.
func (c *Client) UpdateProduct(ctx context.Context, id int64, update ProductUpdate) (*models.ProductListing, error) {
	const op = "shopify.update_product"

	p := product{ID: id}
	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	if update.Price != nil {
		if err := models.ValidatePrice(*update.Price); err != nil {
			return nil, errs.E(errs.InvalidArgument, op, err)
		}
		variantID, err := c.firstVariantID(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Variants = []variant{{ID: variantID, Price: *update.Price}}
	}

	var out productEnvelope
	res, err := c.req(ctx, &out).
		SetBody(productEnvelope{Product: p}).
		Put(fmt.Sprintf("/products/%d.json", id))
	if err := checkResponse(op, res, err); err != nil {
		return nil, err
	}

	c.logger.InfoW("product updated", "product_id", id)
	return c.toListing(out.Product), nil
}

func (c *Client) firstVariantID(ctx context.Context, id int64) (int64, error) {
	var out productEnvelope
	res, err := c.req(ctx, &out).
		SetQueryParam("fields", "id,variants").
		Get(fmt.Sprintf("/products/%d.json", id))
	if err := checkResponse("shopify.update_product", res, err); err != nil {
		return 0, err
	}
	if len(out.Product.Variants) == 0 {
		return 0, errs.Errorf(errs.Catalog, "shopify.update_product", "product %d has no variants", id)
	}
	return out.Product.Variants[0].ID, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	res, err := c.req(ctx, nil).
		Delete(fmt.Sprintf("/products/%d.json", id))
	if err := checkResponse("shopify.delete_product", res, err); err != nil {
		return err
	}
	c.logger.InfoW("product deleted", "product_id", id)
	return nil
}

func (c *Client) ListProducts(ctx context.Context, ids []int64) ([]models.ProductListing, error) {
	const op = "shopify.list_products"
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxListIDs {
		return nil, errs.Errorf(errs.InvalidArgument, op, "at most %d ids per request, got %d", maxListIDs, len(ids))
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}

	var out productsEnvelope
	res, err := c.req(ctx, &out).
		SetQueryParams(map[string]string{
			"ids":   strings.Join(strIDs, ","),
			"limit": strconv.Itoa(maxListIDs),
		}).
		Get("/products.json")
	if err := checkResponse(op, res, err); err != nil {
		return nil, err
	}

	listings := make([]models.ProductListing, 0, len(out.Products))
	for _, p := range out.Products {
		listings = append(listings, *c.toListing(p))
	}
	return listings, nil
}

func (c *Client) toListing(p product) *models.ProductListing {
	l := &models.ProductListing{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        splitTags(p.Tags),
		Handle:      p.Handle,
		AdminURL:    c.AdminURL(p.ID),
	}
	if p.Handle != "" {
		l.StoreURL = c.StoreURL(p.Handle)
	}
	if len(p.Variants) > 0 {
		l.Price = p.Variants[0].Price
	}
	if len(p.Images) > 0 {
		l.ImageURL = p.Images[0].Src
	}
	return l
}

// StoreURL is the public storefront link for a product handle.
func (c *Client) StoreURL(handle string) string {
	return fmt.Sprintf("https://%s.myshopify.com/products/%s", c.cfg.ShopName, handle)
}

// AdminURL is the admin console link for a product.
func (c *Client) AdminURL(id int64) string {
	return fmt.Sprintf("https://admin.shopify.com/store/%s/products/%d", c.cfg.ShopName, id)
}

func bodyHTML(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}
	return "<p>" + html.EscapeString(description) + "</p>"
}

func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
