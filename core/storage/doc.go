// Package storage wraps the MinIO Go client behind a small interface.
//
// The Client interface covers what the snapshot object backend needs (bucket
// checks, uploads and downloads) and is mocked in core/storage/mocks for unit
// tests. It works against AWS S3 and self-hosted MinIO alike.
//
//	client, err := storage.NewClient(cfg)
//	err = storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region)
package storage
