package aws

import (
	"context"
	"fmt"
	"io"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectUploader stores an object and returns where it can be found.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// S3Uploader streams objects into one bucket using the multipart upload manager.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
}

func NewS3Uploader(cfg sdkaws.Config, bucket string) *S3Uploader {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// LocalStack only serves path-style URLs.
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return &S3Uploader{uploader: manager.NewUploader(client), bucket: bucket}
}

// Upload writes body to key and returns the object URL.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.bucket),
		Key:         sdkaws.String(key),
		Body:        body,
		ContentType: sdkaws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return out.Location, nil
}
