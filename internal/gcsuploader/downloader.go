package gcsuploader

import (
	"context"
	"fmt"
	"io"
)

// Download reads the whole object.
func (b *Bucket) Download(ctx context.Context, objectName string) ([]byte, error) {
	r, err := b.client.Bucket(b.name).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: read GCS object: %w", err)
	}

	return data, nil
}
