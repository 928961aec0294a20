package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
)

var _ Store = (*SQLiteStore)(nil)

//go:embed schema/migrations/*.sql
var migrations embed.FS

const (
	memoryDSNFormat     = "file:dreamshop_%d?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000"
	defaultListingLimit = 10
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout          = "2006-01-02T15:04:05.000000000Z"
)

// memoryDBSeq keeps each store's in-memory database private.
var memoryDBSeq atomic.Int64

type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	snapshotPath string
	logger       logger.Logger
	clock        clock.Clock

	// Debounced flush
	flushDebounce time.Duration
	flushTimer    *time.Timer
	flushMu       sync.Mutex
	dirty         bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type Params struct {
	Config Config
	Clock  clock.Clock
	Logger logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	cfg := p.Config
	cfg.Defaults()

	return &SQLiteStore{
		snapshotPath:  cfg.Path,
		flushDebounce: cfg.FlushDebounce,
		clock:         clock.Or(p.Clock),
		logger:        logger.OrNop(p.Logger),
	}
}

// SetFlushDebounce sets the debounce duration for disk flushes.
// Must be called before Open().
func (s *SQLiteStore) SetFlushDebounce(d time.Duration) {
	s.flushDebounce = d
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite3", fmt.Sprintf(memoryDSNFormat, memoryDBSeq.Add(1)))
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.applyMigrations(ctx)
}

// Close closes the database without flushing. Use Shutdown for graceful shutdown.
func (s *SQLiteStore) Close() error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	s.flushMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown performs a final flush to disk and closes the database.
func (s *SQLiteStore) Shutdown(ctx context.Context) error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	dirty := s.dirty
	s.flushMu.Unlock()

	if dirty && s.snapshotPath != "" {
		if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
			s.logger.ErrorW("shutdown flush failed", "path", s.snapshotPath, "error", err)
		}
	}

	return s.Close()
}

func (s *SQLiteStore) RestoreFromDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("store is not open")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	if err := s.backup(ctx, fileDB, s.db); err != nil {
		return err
	}

	s.logger.InfoW("ledger restored", "path", path)
	return s.applyMigrations(ctx)
}

func (s *SQLiteStore) FlushToDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx, path); err != nil {
		return err
	}

	s.flushMu.Lock()
	s.dirty = false
	s.flushMu.Unlock()
	return nil
}

func (s *SQLiteStore) scheduleFlush() {
	if s.snapshotPath == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = time.AfterFunc(s.flushDebounce, s.performScheduledFlush)
}

func (s *SQLiteStore) performScheduledFlush() {
	s.flushMu.Lock()
	dirty := s.dirty
	s.flushMu.Unlock()
	if !dirty {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
		s.logger.ErrorW("scheduled flush failed", "path", s.snapshotPath, "error", err)
	}
}

func (s *SQLiteStore) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *SQLiteStore) RecordListing(ctx context.Context, rec models.ListingRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errors.New("store is not open")
	}

	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return 0, fmt.Errorf("encode tags: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = models.ListingActive
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	now := s.clock.Now().UTC().Format(timeLayout)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (
			request_id, user_id, channel_id, prompt, title, price, tags,
			asset_key, asset_url, product_id, product_url, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.UserID, rec.ChannelID, rec.Prompt, rec.Title, rec.Price, string(tags),
		rec.AssetKey, rec.AssetURL, rec.ProductID, rec.ProductURL, string(status),
		createdAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		s.logger.ErrorW("failed to insert listing", "error", err, "product_id", rec.ProductID)
		return 0, fmt.Errorf("insert listing: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	s.logger.DebugW("listing recorded", "id", id, "product_id", rec.ProductID, "user_id", rec.UserID)
	s.scheduleFlush()
	return id, nil
}

func (s *SQLiteStore) MarkListingRemoved(ctx context.Context, productID int64) error {
	return s.updateListing(ctx, productID, "status = ?", string(models.ListingRemoved))
}

func (s *SQLiteStore) UpdateListingPrice(ctx context.Context, productID int64, price string) error {
	if err := models.ValidatePrice(price); err != nil {
		return err
	}
	return s.updateListing(ctx, productID, "price = ?", price)
}

func (s *SQLiteStore) updateListing(ctx context.Context, productID int64, set string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("store is not open")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE listings SET "+set+", updated_at = ? WHERE product_id = ?",
		value, s.clock.Now().UTC().Format(timeLayout), productID,
	)
	if err != nil {
		return fmt.Errorf("update listing %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	s.scheduleFlush()
	return nil
}

const listingColumns = `id, request_id, user_id, channel_id, prompt, title, price, tags,
	asset_key, asset_url, product_id, product_url, status, created_at`

func (s *SQLiteStore) GetListingByProductID(ctx context.Context, productID int64) (*models.ListingRecord, error) {
	recs, err := s.queryListings(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE product_id = ?", productID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

// ListListingsByUser returns the user's most recent listings first.
func (s *SQLiteStore) ListListingsByUser(ctx context.Context, userID string, limit int) ([]models.ListingRecord, error) {
	if limit <= 0 {
		limit = defaultListingLimit
	}
	return s.queryListings(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
}

func (s *SQLiteStore) ListActiveListings(ctx context.Context) ([]models.ListingRecord, error) {
	return s.queryListings(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE status = ? ORDER BY product_id",
		string(models.ListingActive))
}

func (s *SQLiteStore) queryListings(ctx context.Context, query string, args ...any) ([]models.ListingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not open")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ListingRecord
	for rows.Next() {
		var (
			rec       models.ListingRecord
			tags      string
			status    string
			createdAt string
		)
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.UserID, &rec.ChannelID, &rec.Prompt, &rec.Title, &rec.Price, &tags,
			&rec.AssetKey, &rec.AssetURL, &rec.ProductID, &rec.ProductURL, &status, &createdAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for listing %d: %w", rec.ID, err)
		}
		rec.Status = models.ListingStatus(status)
		if rec.CreatedAt, err = time.ParseInLocation(timeLayout, createdAt, time.UTC); err != nil {
			return nil, fmt.Errorf("parse created_at for listing %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) flushLocked(ctx context.Context, path string) error {
	if s.db == nil {
		return errors.New("store is not open")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	return s.backup(ctx, s.db, fileDB)
}

func (s *SQLiteStore) backup(ctx context.Context, src *sql.DB, dst *sql.DB) error {
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dstSQLite, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver: %T", dstDriver)
			}
			srcSQLite, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver: %T", srcDriver)
			}

			backup, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return err
			}
			defer backup.Finish()

			_, err = backup.Step(-1)
			return err
		})
	})
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	if s.db == nil {
		return errors.New("store is not open")
	}

	files, err := fs.Glob(migrations, "schema/migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(name), err)
		}
	}
	return nil
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
