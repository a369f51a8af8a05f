// Package archive keeps a copy of every request body handed to the mailer.
package archive

import (
	"context"
	"io"
)

// Archive stores documents grouped by an owner name, typically a draft ID.
// Keys returned by Save are opaque and only meaningful to Get and Delete.
type Archive interface {
	Save(ctx context.Context, owner, contentType string, r io.Reader) (key string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}
