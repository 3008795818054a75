// Package blob defines the minimal object-store contract the reservation
// layer is built on: single-key put/get/list with no multi-key atomicity and
// no guarantee that a put is immediately visible to a later list.
package blob

import (
	"context"

	"github.com/cockroachdb/errors"
)

var ErrNotFound = errors.New("object not found")

type Object struct {
	Path     string
	Metadata map[string]string
}

type Store interface {
	Put(ctx context.Context, path string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}
