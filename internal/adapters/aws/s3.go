package awsx

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
)

// S3ObjectStore implements core.ObjectStore on a single bucket.
type S3ObjectStore struct {
	client S3API
	bucket string
}

// NewS3ObjectStore returns an object store writing to bucket.
func NewS3ObjectStore(client S3API, bucket string) (*S3ObjectStore, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &S3ObjectStore{client: client, bucket: bucket}, nil
}

// Put uploads req.Body under req.Key.
func (s *S3ObjectStore) Put(ctx context.Context, req core.PutObjectRequest) (model.PayloadRef, error) {
	if req.Key == "" {
		return model.PayloadRef{}, errors.New("object key is required")
	}
	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(req.Key),
		Body:     req.Body,
		Metadata: req.Metadata,
	}
	if req.Size > 0 {
		in.ContentLength = aws.Int64(req.Size)
	}
	if req.ContentType != "" {
		in.ContentType = aws.String(req.ContentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return model.PayloadRef{}, wrapAPIError("s3 put object", err)
	}
	return model.PayloadRef{Bucket: s.bucket, Key: req.Key}, nil
}

var _ core.ObjectStore = (*S3ObjectStore)(nil)
