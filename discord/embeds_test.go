package discord

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/pipeline"
)

func TestSuccessEmbed(t *testing.T) {
	e := successEmbed(&pipeline.Result{
		Listing: &models.ProductListing{
			ID:       1001,
			Title:    "Neon Koi",
			Price:    "19.99",
			Vendor:   "Dreamshop",
			Tags:     []string{"koi", "neon"},
			StoreURL: "https://dream-store.myshopify.com/products/neon-koi",
		},
		Asset: &models.StoredAsset{URL: "https://s3.example.com/b/koi.png"},
	})

	assert.Equal(t, colorSuccess, e.Color)
	assert.Equal(t, "https://dream-store.myshopify.com/products/neon-koi", e.URL)
	assert.Contains(t, e.Description, "https://dream-store.myshopify.com/products/neon-koi")
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "Price", e.Fields[0].Name)
	assert.Equal(t, "Vendor", e.Fields[1].Name)
	assert.Equal(t, "koi, neon", e.Fields[2].Value)
	require.NotNil(t, e.Image)
	assert.Equal(t, "https://s3.example.com/b/koi.png", e.Image.URL)
}

func TestErrorEmbed(t *testing.T) {
	err := errs.E(errs.Timeout, "pipeline.generate", context.DeadlineExceeded)
	e := errorEmbed(err)

	assert.Equal(t, colorError, e.Color)
	assert.Equal(t, "Timed out", e.Title)
	assert.Equal(t, "Timed out: context deadline exceeded", e.Description)
	assert.Equal(t, "Error code NET001", e.Footer.Text)
}

func TestProgressEmbed(t *testing.T) {
	e := progressEmbed("a neon koi", pipeline.StageUploading)
	lines := strings.Split(strings.TrimSpace(e.Description), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "✅"))
	assert.Contains(t, lines[1], "**Uploading...**")
	assert.True(t, strings.HasPrefix(lines[2], "⏳"))
	assert.Equal(t, "a neon koi", e.Fields[0].Value)
}

func TestFormatListings(t *testing.T) {
	assert.Contains(t, formatListings(nil), "no listings")

	out := formatListings([]models.ListingRecord{
		{Title: "Koi", ProductURL: "https://s/koi", Price: "5.00", CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "Fox", ProductURL: "https://s/fox", Price: "7.00", Status: models.ListingRemoved, CreatedAt: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, out, "[Koi](https://s/koi) $5.00 (Oct 1)")
	assert.Contains(t, out, "[Fox](https://s/fox) $7.00 (Oct 2) ~~removed~~")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
