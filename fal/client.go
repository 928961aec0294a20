package fal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
	"golang.org/x/time/rate"
)

var _ Generator = (*Client)(nil)

const maxErrorBody = 64 << 10

// Client talks to the fal.ai queue API.
type Client struct {
	http    *resty.Client
	cfg     Config
	limiter *rate.Limiter
	logger  logger.Logger
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
	hc.SetBaseURL(strings.TrimRight(cfg.QueueURL, "/")).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": "dreamshop/1.0",
		})

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		http:    hc,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.OrNop(p.Logger),
	}
}

// Generate submits the prompt, waits for the queued request to complete and
// downloads the first image. The whole call is bounded by Config.Timeout.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedImage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Classify("fal.submit", err, errs.Upstream)
	}

	queued, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	log := c.logger.With("fal_request_id", queued.RequestID)
	log.DebugW("fal request queued", "model", c.cfg.Model)

	if err := c.waitCompleted(ctx, queued.StatusURL); err != nil {
		return nil, err
	}

	result, err := c.fetchResult(ctx, queued.ResponseURL)
	if err != nil {
		return nil, err
	}
	if len(result.Images) == 0 || result.Images[0].URL == "" {
		return nil, errs.Errorf(errs.Upstream, "fal.result", "no images returned for request %s", queued.RequestID)
	}

	img, err := c.download(ctx, result.Images[0])
	if err != nil {
		return nil, err
	}
	log.InfoW("fal image generated", "bytes", len(img.Data), "content_type", img.ContentType, "seed", result.Seed)
	return img, nil
}

// req builds a queue API request. Image downloads go to the CDN and do not
// carry the key.
func (c *Client) req(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Key "+c.cfg.APIKey)
}

func (c *Client) submit(ctx context.Context, req models.GenerationRequest) (*queueResponse, error) {
	size := req.ImageSize
	if size == "" {
		size = c.cfg.ImageSize
	}
	body := submitRequest{
		Prompt:              req.Prompt,
		NegativePrompt:      req.NegativePrompt,
		ImageSize:           size,
		NumInferenceSteps:   c.cfg.Steps,
		GuidanceScale:       c.cfg.GuidanceScale,
		NumImages:           1,
		EnableSafetyChecker: !c.cfg.DisableSafetyChecker,
		Seed:                req.Seed,
	}

	var out queueResponse
	res, err := c.req(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/" + strings.TrimLeft(c.cfg.Model, "/"))
	if err := checkResponse("fal.submit", res, err); err != nil {
		return nil, err
	}
	if out.StatusURL == "" || out.ResponseURL == "" {
		return nil, errs.Errorf(errs.Upstream, "fal.submit", "queue response missing status or response url")
	}
	return &out, nil
}

func (c *Client) waitCompleted(ctx context.Context, statusURL string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var st statusResponse
		res, err := c.req(ctx).
			SetResult(&st).
			Get(statusURL)
		if err := checkResponse("fal.status", res, err); err != nil {
			return err
		}

		switch st.Status {
		case statusCompleted:
			return nil
		case statusInQueue, statusInProgress:
		default:
			c.logger.WarnW("unexpected fal status", "status", st.Status)
		}

		select {
		case <-ctx.Done():
			return errs.Classify("fal.status", ctx.Err(), errs.Upstream)
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, responseURL string) (*resultResponse, error) {
	var out resultResponse
	res, err := c.req(ctx).
		SetResult(&out).
		Get(responseURL)
	if err := checkResponse("fal.result", res, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) download(ctx context.Context, img image) (*models.GeneratedImage, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(img.URL)
	if err := checkResponse("fal.download", res, err); err != nil {
		return nil, err
	}

	data := res.Body()
	if len(data) == 0 {
		return nil, errs.Errorf(errs.Upstream, "fal.download", "empty image body")
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = res.Header().Get("Content-Type")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &models.GeneratedImage{
		Data:        data,
		ContentType: contentType,
		SourceURL:   img.URL,
	}, nil
}

// checkResponse turns transport failures and non-2xx responses into
// classified errors.
func checkResponse(op string, res *resty.Response, err error) error {
	if err != nil {
		return errs.Classify(op, err, errs.Upstream)
	}
	if res.IsError() {
		body := res.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return errs.Errorf(errs.Upstream, op, "status %d: %s", res.StatusCode(), strings.TrimSpace(string(body)))
	}
	return nil
}
