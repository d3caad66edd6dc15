package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveStore keeps a remote copy of archived snapshots in an S3-compatible
// bucket (DigitalOcean Spaces).
type ArchiveStore struct {
	client      *s3.Client
	bucket      string
	region      string
	archiveRoot string
}

func NewArchiveStore(key, secret, region, bucket, archiveRoot string) (*ArchiveStore, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &ArchiveStore{
		client:      s3.NewFromConfig(cfg),
		bucket:      bucket,
		region:      region,
		archiveRoot: strings.Trim(archiveRoot, "/"),
	}, nil
}

func (s *ArchiveStore) key(name string) string {
	if s.archiveRoot == "" {
		return name
	}
	return s.archiveRoot + "/" + name
}

// Upload stores one archived snapshot under the archive root.
func (s *ArchiveStore) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Delete removes one archived snapshot.
func (s *ArchiveStore) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *ArchiveStore) GetBucket() string {
	return s.bucket
}

func (s *ArchiveStore) GetRegion() string {
	return s.region
}
