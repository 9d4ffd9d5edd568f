// Package auditexport periodically ships refresh token issuance records to
// object storage. Token values never leave the database.
package auditexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

const (
	DefaultPageSize = 500
	// DefaultSettleDelay must exceed the longest transaction that inserts
	// refresh tokens (sessions.DefaultRotationTimeout).
	DefaultSettleDelay = time.Minute
	contentType        = "application/x-ndjson"
)

// ObjectPutter is satisfied by *s3.Client.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Interval time.Duration
	Bucket   string
	Prefix   string
	PageSize int
	// SettleDelay keeps the newest rows out of a run. created_at is the
	// inserting transaction's start time, so rows younger than this may
	// still be uncommitted.
	SettleDelay time.Duration
}

// Record is one exported line.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	JwtID     string    `json:"jwt_id"`
	IsUsed    bool      `json:"is_used"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newRecord(t *models.RefreshToken) Record {
	return Record{
		ID:        t.ID,
		UserID:    t.UserID,
		JwtID:     t.JwtID,
		IsUsed:    t.IsUsed,
		IsRevoked: t.IsRevoked,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
}

type Exporter struct {
	tokens  refreshtokens.Repository
	store   ObjectPutter
	cfg     Config
	clock   timex.Clock
	logger  logging.Logger
	metrics *metrics.Metrics

	// watermark is the exclusive upper bound of the last exported window.
	watermark time.Time
}

func New(tokens refreshtokens.Repository, store ObjectPutter, cfg Config, clock timex.Clock, l logging.Logger, m *metrics.Metrics) (*Exporter, error) {
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: negative audit export interval", common.ErrConfiguration)
	}
	if cfg.Interval > 0 && cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: audit export bucket is required", common.ErrConfiguration)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	return &Exporter{
		tokens:  tokens,
		store:   store,
		cfg:     cfg,
		clock:   clock,
		logger:  l.With("module", "audit_export"),
		metrics: m,
	}, nil
}

// ObjectKey is <prefix>/<yyyy_MM_dd>/<HH_mm_ss>_refresh_tokens.jsonl.
func ObjectKey(prefix string, at time.Time) string {
	at = at.UTC()
	return path.Join(prefix, at.Format("2006_01_02"), at.Format("15_04_05")+"_refresh_tokens.jsonl")
}

// Run exports on every tick until ctx is done. A zero interval disables it.
func (e *Exporter) Run(ctx context.Context) {
	if e.cfg.Interval == 0 {
		e.logger.Info(ctx, "audit export disabled")
		return
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.ExportOnce(ctx)
			if err != nil {
				e.logger.Error(ctx, "audit export failed", "error", err)
				continue
			}
			if n > 0 {
				e.logger.Info(ctx, "audit export done", "rows", n)
			}
		}
	}
}

// ExportOnce uploads every row created in [watermark, now-SettleDelay) as
// one object. Nothing is uploaded when the window is empty. The watermark
// only moves after the window was read and, if non-empty, uploaded.
func (e *Exporter) ExportOnce(ctx context.Context) (int, error) {
	until := e.clock.Now().Add(-e.cfg.SettleDelay)
	if !until.After(e.watermark) {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	cursor := refreshtokens.Cursor{CreatedAt: e.watermark}
	count := 0
	for {
		rows, err := e.tokens.ListCreatedBefore(ctx, cursor, until, e.cfg.PageSize)
		if err != nil {
			return 0, err
		}
		for _, row := range rows {
			if err := enc.Encode(newRecord(row)); err != nil {
				return 0, fmt.Errorf("encode audit record: %w", err)
			}
			cursor = refreshtokens.CursorAt(row)
		}
		count += len(rows)
		if len(rows) < e.cfg.PageSize {
			break
		}
	}

	if count > 0 {
		key := ObjectKey(e.cfg.Prefix, e.clock.Now())
		_, err := e.store.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(e.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return 0, fmt.Errorf("put %s: %w", key, err)
		}
	}

	e.watermark = until
	if e.metrics != nil {
		e.metrics.AuditExported.Add(float64(count))
	}
	return count, nil
}
