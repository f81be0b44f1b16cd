// FilePath: internal/repository/s3store/s3.storage.go
package s3store

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

// S3Repo is a BlobStore backed by an S3-compatible bucket
type S3Repo struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Repository loads the default AWS credential chain and connects to the bucket
func NewS3Repository(ctx context.Context, cfg config.BlobStoreConfig) (*S3Repo, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	nuts.L.Infof("[S3Repo] Using bucket %s (prefix %q)", cfg.Bucket, cfg.Prefix)
	return &S3Repo{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (r *S3Repo) objectKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return path.Join(r.prefix, key)
}

func (r *S3Repo) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", errors.NewInternalError("failed to upload blob", err)
	}
	nuts.L.Debugf("[S3Repo] Stored blob: %s (%d bytes)", key, len(data))
	return key, nil
}

func (r *S3Repo) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if stderrors.As(err, &noSuchKey) {
			return nil, "", errors.NewNotFoundError("blob not found", err)
		}
		return nil, "", errors.NewInternalError("failed to fetch blob", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", errors.NewInternalError("failed to read blob", err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func (r *S3Repo) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		return errors.NewInternalError("failed to delete blob", err)
	}
	return nil
}
