package listingsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
)

var _ Syncer = (*DefaultPoller)(nil)

// DefaultPoller periodically checks active ledger listings against the
// storefront. Products that no longer exist are marked removed and price
// changes made on the storefront are copied into the ledger.
type DefaultPoller struct {
	ledger       Ledger
	catalog      Catalog
	interval     time.Duration
	batchSize    int
	batchTimeout time.Duration
	logger       logger.Logger
	stop         chan struct{}
	done         chan struct{}
}

type Params struct {
	Config  Config
	Ledger  Ledger
	Catalog Catalog
	Logger  logger.Logger
}

func New(p Params) *DefaultPoller {
	p.Config.Defaults()

	return &DefaultPoller{
		ledger:       p.Ledger,
		catalog:      p.Catalog,
		interval:     p.Config.PollInterval,
		batchSize:    p.Config.BatchSize,
		batchTimeout: p.Config.BatchTimeout,
		logger:       logger.OrNop(p.Logger),
	}
}

// Start begins the polling loop.
func (p *DefaultPoller) Start(ctx context.Context) error {
	if p.ledger == nil || p.catalog == nil {
		return errors.New("listingsync: ledger and catalog are required")
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
	return nil
}

// Stop stops the polling loop.
func (p *DefaultPoller) Stop() {
	if p.stop != nil {
		close(p.stop)
		<-p.done
		p.stop = nil
	}
}

func (p *DefaultPoller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := p.SyncOnce(ctx)
			if err != nil {
				p.logger.WarnW("listing sync incomplete", "error", err)
			}
			p.logger.InfoW("listing sync finished",
				"checked", res.Checked,
				"removed", res.Removed,
				"repriced", res.Repriced,
			)
		}
	}
}

// SyncOnce runs a single pass. A failed batch is skipped and reported in
// the returned error; the other batches are still processed.
func (p *DefaultPoller) SyncOnce(ctx context.Context) (Result, error) {
	var res Result

	active, err := p.ledger.ListActiveListings(ctx)
	if err != nil {
		return res, fmt.Errorf("list active listings: %w", err)
	}

	var errs []error
	for start := 0; start < len(active); start += p.batchSize {
		end := min(start+p.batchSize, len(active))
		if err := p.syncBatch(ctx, active[start:end], &res); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return res, errors.Join(errs...)
}

func (p *DefaultPoller) syncBatch(ctx context.Context, batch []models.ListingRecord, res *Result) error {
	ids := make([]int64, len(batch))
	for i, rec := range batch {
		ids[i] = rec.ProductID
	}

	batchCtx, cancel := context.WithTimeout(ctx, p.batchTimeout)
	remote, err := p.catalog.ListProducts(batchCtx, ids)
	cancel()
	if err != nil {
		return fmt.Errorf("list products %d..%d: %w", ids[0], ids[len(ids)-1], err)
	}

	byID := make(map[int64]models.ProductListing, len(remote))
	for _, l := range remote {
		byID[l.ID] = l
	}

	var errs []error
	for _, rec := range batch {
		res.Checked++
		product, ok := byID[rec.ProductID]
		if !ok {
			if err := p.ledger.MarkListingRemoved(ctx, rec.ProductID); err != nil {
				errs = append(errs, fmt.Errorf("mark %d removed: %w", rec.ProductID, err))
				continue
			}
			res.Removed++
			p.logger.InfoW("listing removed from storefront", "product_id", rec.ProductID)
			continue
		}
		if product.Price != "" && product.Price != rec.Price {
			if err := p.ledger.UpdateListingPrice(ctx, rec.ProductID, product.Price); err != nil {
				errs = append(errs, fmt.Errorf("reprice %d: %w", rec.ProductID, err))
				continue
			}
			res.Repriced++
		}
	}
	return errors.Join(errs...)
}
