// Package store persists indicator snapshots to S3-compatible object storage.
// Business logic depends on the ObjectStore interface, never on the concrete
// client, so it can be tested with mocks and without a running Ceph.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// ErrNotFound is returned by ObjectStore.Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the object operations used by the reporter.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key returns the object key of a class snapshot for a run date,
// <class>/<class>-<YYYY-MM-DD>.csv.
func Key(class string, date time.Time) string {
	return fmt.Sprintf("%s/%s-%s.csv", class, class, date.Format(domain.DateLayout))
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
