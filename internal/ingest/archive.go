package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores raw scan exports in object storage before they are
// parsed, so every assessment can be traced back to the exact bytes the
// scanner produced. The archive sits outside the calculation path and is
// optional at runtime.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to an S3-compatible endpoint and ensures the
// archive bucket exists.
func NewArchive(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create archive bucket %s: %w", bucket, err)
		}
	}

	return &Archive{client: client, bucket: bucket}, nil
}

// PutReport archives a raw scan export under the client it belongs to and
// returns the object key.
func (a *Archive) PutReport(ctx context.Context, clientID string, report []byte) (string, error) {
	key := reportKey(clientID, time.Now().UTC())
	_, err := a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(report), int64(len(report)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to archive scan report %s: %w", key, err)
	}
	return key, nil
}

// GetReport retrieves an archived scan export by key.
func (a *Archive) GetReport(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived report %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived report %s: %w", key, err)
	}
	return data, nil
}

// Ping verifies the archive bucket is reachable, for health checks.
func (a *Archive) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("archive unreachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("archive bucket %s missing", a.bucket)
	}
	return nil
}

func reportKey(clientID string, ts time.Time) string {
	return fmt.Sprintf("reports/%s/%s.json", clientID, ts.Format("20060102T150405Z"))
}
