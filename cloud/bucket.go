// Copyright © 2025 Admin Road Engineering.

// Package cloud opens blob storage by scheme-tagged URI. The accepted
// storage providers are "file" for the local filesystem (e.g., for
// testing and development) and "s3" for AWS S3.
package cloud

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/s3blob"
)

// IsBlob returns whether the given path represents a blob URI rather
// than a local file path.
func IsBlob(p string) bool {
	return strings.HasPrefix(p, "s3://") || strings.HasPrefix(p, "file://")
}

// OpenBucket returns the blob storage bucket holding the given URI.
// Credentials and region for s3 come from the process environment
// (AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func OpenBucket(ctx context.Context, uri string) (*blob.Bucket, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenBucket: %w", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(filepath.Dir(localPath(u)), nil)
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("cloud.OpenBucket: unsupported provider %q", u.Scheme)
	}
}

func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "ap-southeast-2"
	}
	s := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return s3blob.OpenBucket(ctx, s, name, nil)
}

func localPath(u *url.URL) string {
	// file://host/path is not meaningful here; treat host+path as path.
	return filepath.FromSlash(path.Join("/", u.Host, u.Path))
}

// ReadAll fetches the entire object at the given URI. Plain paths
// without a scheme are read from the local filesystem.
func ReadAll(ctx context.Context, uri string) ([]byte, error) {
	if !IsBlob(uri) {
		return os.ReadFile(uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("cloud.ReadAll: %w", err)
	}
	b, err := OpenBucket(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "file" {
		key = filepath.Base(localPath(u))
	}
	r, err := b.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud.ReadAll: opening %s: %w", uri, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cloud.ReadAll: reading %s: %w", uri, err)
	}
	return data, nil
}
