package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	"github.com/donaldgifford/slo-reporter/internal/sli"
	"github.com/donaldgifford/slo-reporter/internal/store"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// Bucket labels used in metrics and logs.
const (
	bucketPrivate = "private"
	bucketPublic  = "public"
)

// Persister writes class snapshots to the private bucket and, when
// configured, to the public one. Prior snapshots are only read from the
// private bucket.
type Persister struct {
	private store.ObjectStore
	public  store.ObjectStore
	log     *slog.Logger
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPublicStore mirrors every snapshot to s.
func WithPublicStore(s store.ObjectStore) PersisterOption {
	return func(p *Persister) {
		p.public = s
	}
}

// WithPersisterLogger sets a custom logger.
func WithPersisterLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.log = l
	}
}

// NewPersister creates a Persister backed by the private store.
func NewPersister(private store.ObjectStore, opts ...PersisterOption) *Persister {
	p := &Persister{
		private: private,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store encodes row and writes it to every configured bucket. A failed write
// does not prevent the other; all write errors are returned joined.
func (p *Persister) Store(ctx context.Context, ind sli.Indicator, row *domain.Row) error {
	data, err := store.EncodeRow(ind.Columns(), row)
	if err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", ind.Name(), err)
	}

	key := store.Key(ind.Name(), row.Date)
	errs := []error{p.put(ctx, bucketPrivate, p.private, key, data)}
	if p.public != nil {
		errs = append(errs, p.put(ctx, bucketPublic, p.public, key, data))
	}
	return errors.Join(errs...)
}

func (p *Persister) put(ctx context.Context, bucket string, s store.ObjectStore, key string, data []byte) error {
	if err := s.Put(ctx, key, data); err != nil {
		metrics.StorageWritesTotal.WithLabelValues(bucket, resultError).Inc()
		return fmt.Errorf("writing %s to %s bucket: %w", key, bucket, err)
	}
	metrics.StorageWritesTotal.WithLabelValues(bucket, resultSuccess).Inc()
	p.log.Debug("snapshot stored", "bucket", bucket, "key", key)
	return nil
}

// Prior returns the snapshot of ind stored for date. A missing snapshot is
// not an error: it returns nil, nil.
func (p *Persister) Prior(ctx context.Context, ind sli.Indicator, date time.Time) (*domain.Row, error) {
	key := store.Key(ind.Name(), date)
	data, err := p.private.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		p.log.Debug("no prior snapshot", "key", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	row, err := store.DecodeRow(ind.Name(), ind.Columns(), data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return row, nil
}

// Daily reads the daily tables of d for the d.Days() days ending on end,
// oldest first, from the private bucket. Missing or unreadable tables are
// skipped; their keys are returned.
func (p *Persister) Daily(ctx context.Context, d sli.Digest, end time.Time) ([]store.Record, []string) {
	var (
		records []store.Record
		skipped []string
	)
	for i := d.Days() - 1; i >= 0; i-- {
		key := store.Key(d.Name(), end.AddDate(0, 0, -i))
		data, err := p.private.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			p.log.Debug("no daily table", "key", key)
			skipped = append(skipped, key)
			continue
		}
		if err != nil {
			p.log.Warn("reading daily table", "key", key, "error", err)
			skipped = append(skipped, key)
			continue
		}

		recs, err := store.DecodeTable(key, d.Columns(), data)
		if err != nil {
			p.log.Warn("decoding daily table", "key", key, "error", err)
			skipped = append(skipped, key)
			continue
		}
		records = append(records, recs...)
	}
	return records, skipped
}
