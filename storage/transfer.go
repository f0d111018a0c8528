// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/featureform/emrlauncher/connection"
	"github.com/featureform/emrlauncher/fferr"
	"github.com/featureform/emrlauncher/logging"
)

// BucketOpener opens a handle to a named bucket.
type BucketOpener func(ctx context.Context, bucket string) (*blob.Bucket, error)

// S3BucketOpener opens buckets through an SDK v2 S3 client.
func S3BucketOpener(client *s3v2.Client) BucketOpener {
	return func(ctx context.Context, bucket string) (*blob.Bucket, error) {
		return s3blob.OpenBucketV2(ctx, client, bucket, nil)
	}
}

// Transfer moves whole objects between the local filesystem and object storage.
// Bucket handles are opened lazily and reused until Close.
type Transfer struct {
	open    BucketOpener
	logger  logging.Logger
	mtx     sync.Mutex
	buckets map[string]*blob.Bucket
}

func NewTransfer(open BucketOpener, logger logging.Logger) *Transfer {
	return &Transfer{
		open:    open,
		logger:  logger,
		buckets: map[string]*blob.Bucket{},
	}
}

func NewS3Transfer(client *s3v2.Client, logger logging.Logger) *Transfer {
	return NewTransfer(S3BucketOpener(client), logger)
}

func (t *Transfer) bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b, has := t.buckets[name]; has {
		return b, nil
	}
	b, err := t.open(ctx, name)
	if err != nil {
		wrapped := fferr.NewConnectionError(connection.S3Service, err)
		wrapped.AddDetail("bucket", name)
		return nil, wrapped
	}
	t.buckets[name] = b
	return b, nil
}

// Download writes the object to localPath, creating parent directories, and returns localPath.
func (t *Transfer) Download(ctx context.Context, bucket, key, localPath string) (string, error) {
	logger := t.logger.With("bucket", bucket, "key", key, "local_path", localPath)
	logger.Debugw("Downloading object")
	b, err := t.bucket(ctx, bucket)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fferr.NewInternalError(err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return "", fferr.NewInternalError(err)
	}
	if err := b.Download(ctx, key, f, nil); err != nil {
		f.Close()
		os.Remove(localPath)
		logger.Errorw("Failed to download object", "err", err)
		return "", wrapObjectErr(bucket, key, err)
	}
	if err := f.Close(); err != nil {
		return "", fferr.NewInternalError(err)
	}
	logger.Infow("Downloaded object")
	return localPath, nil
}

// DownloadToDir downloads the object to dir/<last element of key>.
func (t *Transfer) DownloadToDir(ctx context.Context, bucket, key, dir string) (string, error) {
	return t.Download(ctx, bucket, key, filepath.Join(dir, path.Base(key)))
}

// Upload puts localPath at prefix/name in bucket and returns the object key.
func (t *Transfer) Upload(ctx context.Context, localPath, bucket, prefix, name string) (string, error) {
	key := path.Join(prefix, name)
	logger := t.logger.With("bucket", bucket, "key", key, "local_path", localPath)
	logger.Debugw("Uploading object")
	b, err := t.bucket(ctx, bucket)
	if err != nil {
		return "", err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fferr.NewInternalError(err)
	}
	defer f.Close()
	if err := b.Upload(ctx, key, f, nil); err != nil {
		logger.Errorw("Failed to upload object", "err", err)
		return "", wrapObjectErr(bucket, key, err)
	}
	logger.Infow("Uploaded object")
	return key, nil
}

func (t *Transfer) ReadAll(ctx context.Context, bucket, key string) ([]byte, error) {
	b, err := t.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}
	data, err := b.ReadAll(ctx, key)
	if err != nil {
		return nil, wrapObjectErr(bucket, key, err)
	}
	return data, nil
}

func (t *Transfer) Write(ctx context.Context, bucket, key string, r io.Reader) error {
	b, err := t.bucket(ctx, bucket)
	if err != nil {
		return err
	}
	if err := b.Upload(ctx, key, r, nil); err != nil {
		return wrapObjectErr(bucket, key, err)
	}
	return nil
}

func (t *Transfer) Exists(ctx context.Context, bucket, key string) (bool, error) {
	b, err := t.bucket(ctx, bucket)
	if err != nil {
		return false, err
	}
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return false, wrapObjectErr(bucket, key, err)
	}
	return exists, nil
}

// Close closes every bucket handle opened so far.
func (t *Transfer) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	var firstErr error
	for name, b := range t.buckets {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing bucket %s: %w", name, err)
		}
		delete(t.buckets, name)
	}
	return firstErr
}

func wrapObjectErr(bucket, key string, err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return fferr.NewObjectNotFoundError(bucket, key, err)
	case gcerrors.PermissionDenied:
		wrapped := fferr.NewConnectionError(connection.S3Service, err)
		wrapped.AddDetails("bucket", bucket, "key", key, "reason", "permission denied")
		return wrapped
	default:
		wrapped := fferr.NewExecutionError(connection.S3Service, err)
		wrapped.AddDetails("bucket", bucket, "key", key)
		return wrapped
	}
}
