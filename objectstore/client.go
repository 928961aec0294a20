package objectstore

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
)

var _ Uploader = (*Client)(nil)

// Client uploads images to an S3-compatible bucket.
type Client struct {
	s3     s3iface.S3API
	cfg    Config
	clock  clock.Clock
	logger logger.Logger
	newID  func() string
}

type Params struct {
	Config Config
	// S3 overrides the client built from Config.
	S3     s3iface.S3API
	Clock  clock.Clock
	Logger logger.Logger
}

func New(p Params) (*Client, error) {
	cfg := p.Config
	cfg.Defaults()

	api := p.S3
	if api == nil {
		sess, err := session.NewSession(&aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.KeyID, cfg.ApplicationKey, ""),
			Endpoint:         aws.String(cfg.Endpoint),
			Region:           aws.String(cfg.Region),
			S3ForcePathStyle: aws.Bool(true),
			MaxRetries:       aws.Int(cfg.MaxRetries),
		})
		if err != nil {
			return nil, errs.E(errs.Storage, "objectstore.session", err)
		}
		api = s3.New(sess)
	}

	return &Client{
		s3:     api,
		cfg:    cfg,
		clock:  clock.Or(p.Clock),
		logger: logger.OrNop(p.Logger),
		newID:  uuid.NewString,
	}, nil
}

// Upload validates img and stores it under <prefix>/<yyyy>/<mm>/<dd>/DREAM_<id>.<ext>.
func (c *Client) Upload(ctx context.Context, img *models.GeneratedImage) (*models.StoredAsset, error) {
	if img == nil {
		return nil, errs.Errorf(errs.Storage, "objectstore.upload", "no image")
	}
	contentType, ext, err := inspect(img.Data, img.ContentType)
	if err != nil {
		return nil, errs.E(errs.Storage, "objectstore.upload", err)
	}

	key := c.key(ext)
	_, err = c.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	asset := &models.StoredAsset{
		Key:         key,
		URL:         c.publicURL(key),
		ContentType: contentType,
		Size:        int64(len(img.Data)),
	}
	c.logger.InfoW("image uploaded", "bucket", c.cfg.Bucket, "key", key, "bytes", asset.Size)
	return asset, nil
}

func (c *Client) key(ext string) string {
	id := strings.ToUpper(strings.ReplaceAll(c.newID(), "-", ""))
	if len(id) > 16 {
		id = id[:16]
	}
	day := c.clock.Now().UTC().Format("2006/01/02")
	return path.Join(c.cfg.Prefix, day, "DREAM_"+id+"."+ext)
}

func (c *Client) publicURL(key string) string {
	if c.cfg.PublicBaseURL != "" {
		return strings.TrimRight(c.cfg.PublicBaseURL, "/") + "/" + key
	}
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/" + c.cfg.Bucket + "/" + key
}

// classify maps SDK failures to storage errors. The SDK reports context
// expiry as RequestCanceled, so the context is checked first.
func (c *Client) classify(ctx context.Context, err error) error {
	const op = "objectstore.put"
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Classify(op, ctxErr, errs.Storage)
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return errs.Errorf(errs.Storage, op, "%s: %s", aerr.Code(), aerr.Message())
	}
	return errs.Classify(op, err, errs.Storage)
}
