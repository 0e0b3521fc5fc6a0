package media

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes objects to an S3 bucket.
type S3 struct {
	client s3API
	bucket string
	region string
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, bucket, region string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, region: region}, nil
}

func (s *S3) Upload(ctx context.Context, key string, u Upload) (string, error) {
	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        u.Body,
		ContentType: aws.String(u.ContentType),
	}
	if u.Size > 0 {
		params.ContentLength = aws.Int64(u.Size)
	}
	if _, err := s.client.PutObject(ctx, params); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
