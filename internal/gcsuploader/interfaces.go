package gcsuploader

import (
	"context"
	"io"
)

// ObjectStorage is the subset of Cloud Storage the report archive needs.
type ObjectStorage interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
	Download(ctx context.Context, objectName string) ([]byte, error)
}

var _ ObjectStorage = (*Bucket)(nil)
