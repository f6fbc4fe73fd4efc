// Package archive uploads the rendered overlay as a tarball to object
// storage, so every applied configuration is auditable after the fact.
// Archival is optional: without a configured bucket the stage is skipped.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
)

// Credentials optionally pins static credentials and a region instead of
// the default AWS credential chain.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// putFunc uploads one object. Injectable so tests run without S3.
type putFunc func(ctx context.Context, input *s3.PutObjectInput) error

// Uploader archives overlay bundles into one bucket under one key prefix.
type Uploader struct {
	Bucket string
	Prefix string

	put putFunc
	now func() time.Time
}

// NewUploader builds an Uploader against real S3. Credentials may be nil,
// in which case the default credential chain is used.
func NewUploader(ctx context.Context, bucket, prefix string, creds *Credentials) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
		if creds.Region != "" {
			opts = append(opts, awsconfig.WithRegion(creds.Region))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	return &Uploader{
		Bucket: bucket,
		Prefix: prefix,
		put: func(ctx context.Context, input *s3.PutObjectInput) error {
			_, err := uploader.Upload(ctx, input)
			return err
		},
		now: time.Now,
	}, nil
}

// UploadOverlay bundles overlayDir and uploads it keyed by UTC timestamp.
// Returns the object key.
func (u *Uploader) UploadOverlay(ctx context.Context, logger logr.Logger, overlayDir string) (string, error) {
	bundle, err := Bundle(overlayDir)
	if err != nil {
		return "", fmt.Errorf("failed to bundle overlay %s: %w", overlayDir, err)
	}

	key := fmt.Sprintf("%s/%s.tar.gz", u.Prefix, u.now().UTC().Format("20060102T150405Z"))
	err = u.put(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(bundle),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload overlay bundle to s3://%s/%s: %w", u.Bucket, key, err)
	}

	logger.Info("Archived overlay bundle", "bucket", u.Bucket, "key", key, "bytes", len(bundle))
	return key, nil
}

// Bundle produces a deterministic gzipped tarball of dir: lexical file
// order and zeroed timestamps, so identical overlays archive to identical
// bytes.
func Bundle(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //#nosec G304 -- path comes from walking the overlay
		if err != nil {
			return err
		}

		header := &tar.Header{
			Name: filepath.ToSlash(rel),
			Mode: 0o644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
