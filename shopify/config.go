package shopify

import "fmt"

const (
	defaultAPIVersion        = "2024-07"
	defaultVendor            = "Dreamshop"
	defaultProductType       = "Digital Art"
	defaultStatus            = "active"
	defaultInventoryQuantity = 1
)

// Config holds Shopify Admin API configuration.
type Config struct {
	ShopName    string `yaml:"shop_name"`
	AccessToken string `yaml:"access_token"`
	APIVersion  string `yaml:"api_version"`
	// BaseURL overrides https://{shop}.myshopify.com/admin/api/{version}.
	BaseURL           string `yaml:"base_url"`
	Vendor            string `yaml:"vendor"`
	ProductType       string `yaml:"product_type"`
	Status            string `yaml:"status"`
	InventoryQuantity int    `yaml:"inventory_quantity"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.BaseURL == "" && c.ShopName != "" {
		c.BaseURL = fmt.Sprintf("https://%s.myshopify.com/admin/api/%s", c.ShopName, c.APIVersion)
	}
	if c.Vendor == "" {
		c.Vendor = defaultVendor
	}
	if c.ProductType == "" {
		c.ProductType = defaultProductType
	}
	if c.Status == "" {
		c.Status = defaultStatus
	}
	if c.InventoryQuantity <= 0 {
		c.InventoryQuantity = defaultInventoryQuantity
	}
}
