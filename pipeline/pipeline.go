package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/fal"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/objectstore"
	"github.com/tnicklin/dreamshop/vision"
)

var _ Pipeline = (*DefaultPipeline)(nil)

const maxTitleRunes = 255

type DefaultPipeline struct {
	cfg       Config
	generator fal.Generator
	uploader  objectstore.Uploader
	catalog   ListingCreator
	tagger    vision.Tagger
	recorder  Recorder
	clock     clock.Clock
	logger    logger.Logger
}

// Params configures a DefaultPipeline. Tagger and Recorder are optional.
type Params struct {
	Config    Config
	Generator fal.Generator
	Uploader  objectstore.Uploader
	Catalog   ListingCreator
	Tagger    vision.Tagger
	Recorder  Recorder
	Clock     clock.Clock
	Logger    logger.Logger
}

func New(p Params) *DefaultPipeline {
	cfg := p.Config
	cfg.Defaults()

	return &DefaultPipeline{
		cfg:       cfg,
		generator: p.Generator,
		uploader:  p.Uploader,
		catalog:   p.Catalog,
		tagger:    p.Tagger,
		recorder:  p.Recorder,
		clock:     clock.Or(p.Clock),
		logger:    logger.OrNop(p.Logger),
	}
}

// Run executes the steps in order and stops at the first failure. Every
// returned error is an *errs.Error.
func (p *DefaultPipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := p.logger.With("request_id", req.ID, "user_id", req.UserID)

	prompt, title, price, err := p.validate(req)
	if err != nil {
		log.InfoW("dream request rejected", "error", err)
		return nil, err
	}
	started := p.clock.Now()
	log.InfoW("dream started", "prompt", prompt)

	notify := func(s Stage) {
		if req.Observer != nil {
			req.Observer(s)
		}
	}

	var img *models.GeneratedImage
	notify(StageGenerating)
	err = p.step(ctx, "generate", p.cfg.GenerateTimeout, func(ctx context.Context) error {
		var err error
		img, err = p.generator.Generate(ctx, models.GenerationRequest{
			Prompt:         prompt,
			NegativePrompt: p.cfg.NegativePrompt,
		})
		return err
	}, errs.Upstream)
	if err != nil {
		log.WarnW("generation failed", "error", err)
		return nil, err
	}

	var asset *models.StoredAsset
	notify(StageUploading)
	err = p.step(ctx, "upload", p.cfg.UploadTimeout, func(ctx context.Context) error {
		var err error
		asset, err = p.uploader.Upload(ctx, img)
		return err
	}, errs.Storage)
	if err != nil {
		log.WarnW("upload failed", "error", err)
		return nil, err
	}

	var analysis *vision.Analysis
	if p.tagger != nil {
		notify(StageTagging)
		err = p.step(ctx, "tag", p.cfg.TagTimeout, func(ctx context.Context) error {
			var err error
			analysis, err = p.tagger.Analyze(ctx, img, prompt)
			return err
		}, errs.Upstream)
		if errs.Is(err, errs.Cancelled) {
			return nil, err
		}
		if err != nil {
			log.WarnW("tagging failed, continuing without tags", "error", err)
			analysis = nil
		}
	}

	draft := p.draft(prompt, title, price, asset, analysis)

	var listing *models.ProductListing
	notify(StageListing)
	err = p.step(ctx, "catalog", p.cfg.CatalogTimeout, func(ctx context.Context) error {
		var err error
		listing, err = p.catalog.CreateProduct(ctx, draft)
		return err
	}, errs.Catalog)
	if err != nil {
		log.WarnW("listing failed", "error", err, "asset_key", asset.Key)
		return nil, err
	}

	p.record(ctx, log, req, prompt, draft, asset, listing)

	log.InfoW("dream completed",
		"product_id", listing.ID,
		"asset_key", asset.Key,
		"elapsed", p.clock.Now().Sub(started),
	)
	return &Result{
		RequestID: req.ID,
		Listing:   listing,
		Asset:     asset,
		Analysis:  analysis,
	}, nil
}

func (p *DefaultPipeline) validate(req Request) (prompt, title, price string, err error) {
	const op = "pipeline.validate"

	prompt = strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", "", "", errs.Errorf(errs.InvalidArgument, op, "prompt must not be empty")
	}
	if n := utf8.RuneCountInString(prompt); n > p.cfg.MaxPromptRunes {
		return "", "", "", errs.Errorf(errs.InvalidArgument, op, "prompt is %d characters, the limit is %d", n, p.cfg.MaxPromptRunes)
	}

	title = strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(title); n > maxTitleRunes {
		return "", "", "", errs.Errorf(errs.InvalidArgument, op, "title is %d characters, the limit is %d", n, maxTitleRunes)
	}

	price = strings.TrimSpace(req.Price)
	if price == "" {
		price = p.cfg.DefaultPrice
	}
	if err := models.ValidatePrice(price); err != nil {
		return "", "", "", errs.E(errs.InvalidArgument, op, err)
	}
	return prompt, title, price, nil
}

// step runs fn under its own timeout. An expired step deadline is reported
// as Timeout and a cancelled parent as Cancelled, whatever fn returned.
func (p *DefaultPipeline) step(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error, fallback errs.Kind) error {
	op := "pipeline." + name
	if err := ctx.Err(); err != nil {
		return errs.Classify(op, err, errs.Cancelled)
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return errs.Classify(op, parentErr, errs.Cancelled)
	}
	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return errs.E(errs.Timeout, op, fmt.Errorf("no response within %s", timeout))
	}
	return errs.Classify(op, err, fallback)
}

func (p *DefaultPipeline) draft(prompt, title, price string, asset *models.StoredAsset, analysis *vision.Analysis) models.ProductListing {
	description := "AI generated artwork from the prompt: " + prompt
	var tags []string
	if analysis != nil {
		if title == "" {
			title = analysis.Title
		}
		if analysis.Description != "" {
			description = analysis.Description
		}
		tags = analysis.Tags
	}
	if title == "" {
		title = truncateRunes(prompt, p.cfg.MaxTitleRunes)
	}

	return models.ProductListing{
		Title:       title,
		Description: description,
		Price:       price,
		Tags:        tags,
		ImageURL:    asset.URL,
	}
}

// record writes the ledger row. The listing already exists on the
// storefront, so a failure here is only logged.
func (p *DefaultPipeline) record(ctx context.Context, log logger.Logger, req Request, prompt string, draft models.ProductListing, asset *models.StoredAsset, listing *models.ProductListing) {
	if p.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RecordTimeout)
	defer cancel()

	_, err := p.recorder.RecordListing(ctx, models.ListingRecord{
		RequestID:  req.ID,
		UserID:     req.UserID,
		ChannelID:  req.ChannelID,
		Prompt:     prompt,
		Title:      draft.Title,
		Price:      draft.Price,
		Tags:       draft.Tags,
		AssetKey:   asset.Key,
		AssetURL:   asset.URL,
		ProductID:  listing.ID,
		ProductURL: listing.StoreURL,
		Status:     models.ListingActive,
		CreatedAt:  p.clock.Now().UTC(),
	})
	if err != nil {
		log.ErrorW("failed to record listing", "error", err, "product_id", listing.ID)
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
