package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/vision"
)

type fakeGenerator struct {
	calls int
	err   error
	block bool
	// onCall runs before the fake returns.
	onCall func()
	got    models.GenerationRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedImage, error) {
	f.calls++
	f.got = req
	if f.onCall != nil {
		f.onCall()
	}
	if f.block {
		<-ctx.Done()
		if f.err != nil {
			return nil, f.err
		}
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.GeneratedImage{Data: []byte("png"), ContentType: "image/png"}, nil
}

type fakeUploader struct {
	calls int
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, img *models.GeneratedImage) (*models.StoredAsset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.StoredAsset{
		Key:         "dreams/2026/10/16/DREAM_ABCDEF0123456789.png",
		URL:         "https://s3.example.com/bucket/dreams/2026/10/16/DREAM_ABCDEF0123456789.png",
		ContentType: img.ContentType,
		Size:        int64(len(img.Data)),
	}, nil
}

type fakeCatalog struct {
	calls int
	err   error
	block bool
	got   models.ProductListing
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, l models.ProductListing) (*models.ProductListing, error) {
	f.calls++
	f.got = l
	if f.block {
		<-ctx.Done()
		return nil, errs.Classify("shopify.create_product", ctx.Err(), errs.Catalog)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := l
	out.ID = 1001
	out.Handle = "neon-koi"
	out.StoreURL = "https://dream-store.myshopify.com/products/neon-koi"
	out.AdminURL = "https://admin.shopify.com/store/dream-store/products/1001"
	return &out, nil
}

type fakeTagger struct {
	calls    int
	err      error
	analysis *vision.Analysis
}

func (f *fakeTagger) Analyze(ctx context.Context, img *models.GeneratedImage, prompt string) (*vision.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

type fakeRecorder struct {
	records []models.ListingRecord
	err     error
}

func (f *fakeRecorder) RecordListing(ctx context.Context, rec models.ListingRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

type fixture struct {
	gen      *fakeGenerator
	up       *fakeUploader
	cat      *fakeCatalog
	tag      *fakeTagger
	rec      *fakeRecorder
	pipeline *DefaultPipeline
}

func newFixture(cfg Config, withTagger bool) *fixture {
	f := &fixture{
		gen: &fakeGenerator{},
		up:  &fakeUploader{},
		cat: &fakeCatalog{},
		rec: &fakeRecorder{},
	}
	p := Params{
		Config:    cfg,
		Generator: f.gen,
		Uploader:  f.up,
		Catalog:   f.cat,
		Recorder:  f.rec,
		Clock:     clock.Fixed(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)),
	}
	if withTagger {
		f.tag = &fakeTagger{analysis: &vision.Analysis{
			Title:       "Neon Koi at Dusk",
			Description: "A glowing koi.",
			Tags:        []string{"koi", "neon"},
		}}
		p.Tagger = f.tag
	}
	f.pipeline = New(p)
	return f
}

func (f *fixture) externalCalls() int {
	n := f.gen.calls + f.up.calls + f.cat.calls
	if f.tag != nil {
		n += f.tag.calls
	}
	return n
}

func TestRun_Success(t *testing.T) {
	f := newFixture(Config{}, true)
	var stages []Stage

	res, err := f.pipeline.Run(context.Background(), Request{
		UserID:    "u1",
		ChannelID: "c1",
		Prompt:    "  a neon koi  ",
		Observer:  func(s Stage) { stages = append(stages, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, "https://dream-store.myshopify.com/products/neon-koi", res.Listing.StoreURL)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, []Stage{StageGenerating, StageUploading, StageTagging, StageListing}, stages)

	assert.Equal(t, "a neon koi", f.gen.got.Prompt)
	assert.Equal(t, res.Asset.URL, f.cat.got.ImageURL)
	assert.Equal(t, "Neon Koi at Dusk", f.cat.got.Title)
	assert.Equal(t, "A glowing koi.", f.cat.got.Description)
	assert.Equal(t, defaultPrice, f.cat.got.Price)
	assert.Equal(t, []string{"koi", "neon"}, f.cat.got.Tags)

	require.Len(t, f.rec.records, 1)
	rec := f.rec.records[0]
	assert.Equal(t, res.RequestID, rec.RequestID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "c1", rec.ChannelID)
	assert.Equal(t, int64(1001), rec.ProductID)
	assert.Equal(t, res.Asset.Key, rec.AssetKey)
	assert.Equal(t, models.ListingActive, rec.Status)
	assert.Equal(t, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestRun_TitleAndPrice(t *testing.T) {
	long := strings.Repeat("koi ", 40)

	tests := []struct {
		name       string
		withTagger bool
		req        Request
		wantTitle  string
		wantPrice  string
	}{
		{
			name:       "explicit title wins over tagger",
			withTagger: true,
			req:        Request{Prompt: "koi", Title: "My Koi", Price: "42.50"},
			wantTitle:  "My Koi",
			wantPrice:  "42.50",
		},
		{
			name:      "prompt without tagger",
			req:       Request{Prompt: "koi pond"},
			wantTitle: "koi pond",
			wantPrice: defaultPrice,
		},
		{
			name:      "long prompt is truncated",
			req:       Request{Prompt: long},
			wantTitle: strings.TrimSpace(long[:defaultMaxTitleRunes]),
			wantPrice: defaultPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{}, tt.withTagger)
			_, err := f.pipeline.Run(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, f.cat.got.Title)
			assert.Equal(t, tt.wantPrice, f.cat.got.Price)
		})
	}
}

func TestRun_InvalidArgumentMakesNoCalls(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty prompt", Request{Prompt: ""}},
		{"whitespace prompt", Request{Prompt: " \t\n "}},
		{"prompt too long", Request{Prompt: strings.Repeat("a", defaultMaxPromptRunes+1)}},
		{"bad price", Request{Prompt: "koi", Price: "cheap"}},
		{"zero price", Request{Prompt: "koi", Price: "0"}},
		{"title too long", Request{Prompt: "koi", Title: strings.Repeat("t", 256)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{}, true)
			_, err := f.pipeline.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.InvalidArgument), "got %v", err)
			assert.Zero(t, f.externalCalls())
			assert.Empty(t, f.rec.records)
		})
	}
}

func TestRun_GenerationFailureStops(t *testing.T) {
	f := newFixture(Config{}, true)
	f.gen.err = errs.Errorf(errs.Upstream, "fal.submit", "status 500: boom")

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Upstream))
	assert.Equal(t, 1, f.gen.calls)
	assert.Zero(t, f.up.calls)
	assert.Zero(t, f.tag.calls)
	assert.Zero(t, f.cat.calls)
	assert.Empty(t, f.rec.records)
}

func TestRun_UnclassifiedGenerationError(t *testing.T) {
	f := newFixture(Config{}, false)
	f.gen.err = errors.New("connection reset")

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	assert.True(t, errs.Is(err, errs.Upstream))
}

func TestRun_StorageFailureStops(t *testing.T) {
	f := newFixture(Config{}, true)
	f.up.err = errs.Errorf(errs.Storage, "objectstore.put", "AccessDenied: bad key")

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Storage))
	assert.Equal(t, 1, f.up.calls)
	assert.Zero(t, f.tag.calls)
	assert.Zero(t, f.cat.calls)
	assert.Empty(t, f.rec.records)
}

func TestRun_CatalogFailure(t *testing.T) {
	f := newFixture(Config{}, false)
	f.cat.err = errs.Errorf(errs.Catalog, "shopify.create_product", "title has already been taken")

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Catalog))
	assert.Empty(t, f.rec.records)
}

func TestRun_GenerateTimeout(t *testing.T) {
	f := newFixture(Config{GenerateTimeout: 20 * time.Millisecond}, true)
	f.gen.block = true
	// The client reports its own failure, the step deadline still wins.
	f.gen.err = errs.Errorf(errs.Upstream, "fal.status", "connection closed")

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout), "got %v", err)
	assert.Zero(t, f.up.calls)
	assert.Zero(t, f.cat.calls)
}

func TestRun_CatalogTimeout(t *testing.T) {
	f := newFixture(Config{CatalogTimeout: 20 * time.Millisecond}, false)
	f.cat.block = true

	_, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout), "got %v", err)
	assert.Equal(t, "Timed out: no response within 20ms", errs.Message(err))
	assert.Empty(t, f.rec.records)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(Config{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gen.block = true
	f.gen.onCall = cancel

	_, err := f.pipeline.Run(ctx, Request{Prompt: "koi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Cancelled), "got %v", err)
	assert.Zero(t, f.up.calls)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	f := newFixture(Config{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, Request{Prompt: "koi"})
	assert.True(t, errs.Is(err, errs.Cancelled), "got %v", err)
	assert.Zero(t, f.externalCalls())
}

func TestRun_TaggerFailureIsNotFatal(t *testing.T) {
	f := newFixture(Config{}, true)
	f.tag.err = errors.New("quota exceeded")

	res, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi pond"})
	require.NoError(t, err)
	assert.Nil(t, res.Analysis)
	assert.Equal(t, "koi pond", f.cat.got.Title)
	assert.Empty(t, f.cat.got.Tags)
	assert.Equal(t, 1, f.cat.calls)
}

func TestRun_RecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture(Config{}, false)
	f.rec.err = errors.New("disk full")

	res, err := f.pipeline.Run(context.Background(), Request{Prompt: "koi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), res.Listing.ID)
}
