package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore writes video binaries to S3 and returns their public URLs.
type ObjectStore struct {
	client    *s3.Client
	bucket    string
	cdnDomain string
}

// NewObjectStore creates an ObjectStore from an existing S3 client.
func NewObjectStore(client *s3.Client, bucket, cdnDomain string) *ObjectStore {
	return &ObjectStore{
		client:    client,
		bucket:    bucket,
		cdnDomain: cdnDomain,
	}
}

// Put writes body under key and returns the public URL. Keys must be
// unique per call; the store never overwrites knowingly.
func (s *ObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return s.PublicURL(key), nil
}

// PublicURL returns the CDN-fronted URL for a stored key.
func (s *ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
}

// StoredObject describes one object found under the upload prefix.
type StoredObject struct {
	Key          string
	LastModified time.Time
}

// List returns all objects under prefix. Used by the reconciliation
// sweep to find orphaned binaries.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	var objects []StoredObject

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			o := StoredObject{Key: aws.ToString(obj.Key)}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}

	return objects, nil
}

// Delete removes a stored object.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
