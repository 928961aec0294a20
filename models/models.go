package models

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// GenerationRequest is the input to the image generator.
type GenerationRequest struct {
	Prompt         string `json:"prompt" yaml:"prompt"`
	ImageSize      string `json:"image_size,omitempty" yaml:"image_size"`
	NegativePrompt string `json:"negative_prompt,omitempty" yaml:"negative_prompt"`
	Seed           *int64 `json:"seed,omitempty" yaml:"seed"`
}

// GeneratedImage is an image returned by the generator. It only lives for
// the duration of one pipeline run.
type GeneratedImage struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// StoredAsset is an image uploaded to object storage.
type StoredAsset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ProductListing is a product on the storefront. ID, Handle, StoreURL and
// AdminURL are assigned by the platform.
type ProductListing struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"product_type"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"image_url"`
	Handle      string   `json:"handle"`
	StoreURL    string   `json:"store_url"`
	AdminURL    string   `json:"admin_url"`
}

// Validate checks the fields required to create a listing.
func (l ProductListing) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("title must not be empty")
	}
	if err := ValidatePrice(l.Price); err != nil {
		return err
	}
	u, err := url.Parse(l.ImageURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("image url %q is not an absolute url", l.ImageURL)
	}
	return nil
}

var priceRE = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ValidatePrice checks that price is a positive decimal with at most two
// fraction digits.
func ValidatePrice(price string) error {
	if !priceRE.MatchString(price) {
		return fmt.Errorf("price %q must be a decimal like 19.99", price)
	}
	if strings.Trim(price, "0.") == "" {
		return fmt.Errorf("price %q must be greater than zero", price)
	}
	return nil
}

// ListingStatus is the local view of a product's lifecycle.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingRemoved ListingStatus = "removed"
)

// ListingRecord is the ledger row written after a listing was created.
type ListingRecord struct {
	ID         int64
	RequestID  string
	UserID     string
	ChannelID  string
	Prompt     string
	Title      string
	Price      string
	Tags       []string
	AssetKey   string
	AssetURL   string
	ProductID  int64
	ProductURL string
	Status     ListingStatus
	CreatedAt  time.Time
}
