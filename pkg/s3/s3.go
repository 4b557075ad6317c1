package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConnected is returned when Upload or Remove is called before Connect.
var ErrNotConnected = errors.New("object storage is not connected")

// DefaultLinkExpiry is how long the presigned download link of an upload stays valid.
const DefaultLinkExpiry = 7 * 24 * time.Hour

// ObjectStorageClient stores uploaded documents and returns a link to each.
type ObjectStorageClient interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, objectName string) error
}

// ObjectStorage holds the minio client and the target bucket.
type ObjectStorage struct {
	Conn   *minio.Client
	bucket string
	region string
	expiry time.Duration
}

// NewObjectStorage returns an unconnected storage for bucket.
func NewObjectStorage(bucket, region string) *ObjectStorage {
	if region == "" {
		region = "us-east-1"
	}
	return &ObjectStorage{bucket: bucket, region: region, expiry: DefaultLinkExpiry}
}

// Connect creates the minio client and makes sure the bucket exists.
func (o *ObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	conn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: o.region,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	if err := conn.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{Region: o.region}); err != nil {
		exists, errBucketExists := conn.BucketExists(ctx, o.bucket)
		if errBucketExists != nil || !exists {
			return fmt.Errorf("failed to create bucket %s: %w", o.bucket, err)
		}
	}

	o.Conn = conn
	return nil
}

// Upload stores data under objectName, overwriting any object with the same name, and
// returns a presigned GET URL for it.
func (o *ObjectStorage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if o.Conn == nil {
		return "", ErrNotConnected
	}

	_, err := o.Conn.PutObject(ctx, o.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	presignedURL, err := o.Conn.PresignedGetObject(ctx, o.bucket, objectName, o.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return presignedURL.String(), nil
}

// Remove deletes objectName. Removing a missing object is not an error.
func (o *ObjectStorage) Remove(ctx context.Context, objectName string) error {
	if o.Conn == nil {
		return ErrNotConnected
	}
	if err := o.Conn.RemoveObject(ctx, o.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", objectName, err)
	}
	return nil
}
