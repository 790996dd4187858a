// Package gcsuploader reads and writes report objects in a Cloud Storage
// bucket.
package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single upload.
const uploadTimeout = 2 * time.Minute

// Bucket holds a shared storage client bound to one bucket.
// It assumes Application Default Credentials are configured.
type Bucket struct {
	client *storage.Client
	name   string
}

// NewBucket creates a storage client for bucketName.
func NewBucket(ctx context.Context, bucketName string) (*Bucket, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("NewBucket: bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucket: create storage client: %w", err)
	}
	return &Bucket{client: client, name: bucketName}, nil
}

// Close releases the storage client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// Upload writes r to objectName and returns the gs:// URI of the object.
func (b *Bucket) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.name).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, r); err != nil {
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return ObjectURI(b.name, objectName), nil
}

// ObjectURI formats a gs:// URI.
func ObjectURI(bucketName, objectName string) string {
	return "gs://" + bucketName + "/" + strings.TrimPrefix(objectName, "/")
}
