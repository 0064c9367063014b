// Copyright © 2025 Admin Road Engineering.

// Package raster samples single pixels from remote GeoTIFF tiles. GDAL
// (via godal) performs the range reads through osio adapters backed by
// S3 clients: one credentialed client for the private archive and one
// anonymous client for the public campaign buckets.
package raster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// VSI prefixes. Private tiles keep their s3:// URIs; URIs whose bucket
// is in the public set are rewritten to the public prefix so that GDAL
// routes them through the unsigned client.
const (
	privatePrefix = "s3://"
	publicPrefix  = "s3pub://"
)

// registerVSI is process-global: GDAL VSI handlers can only be
// installed once.
var registerVSI sync.Once

func registerHandlers(ctx context.Context, region string, blockSize string, cachedBlocks int) (err error) {
	registerVSI.Do(func() {
		godal.RegisterAll()

		var cfg aws.Config
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			err = fmt.Errorf("raster: loading AWS config: %w", err)
			return
		}
		if err = registerAdapter(ctx, privatePrefix, s3.NewFromConfig(cfg), blockSize, cachedBlocks); err != nil {
			return
		}

		var anonCfg aws.Config
		anonCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
		)
		if err != nil {
			err = fmt.Errorf("raster: loading anonymous AWS config: %w", err)
			return
		}
		err = registerAdapter(ctx, publicPrefix, s3.NewFromConfig(anonCfg), blockSize, cachedBlocks)
	})
	return err
}

func registerAdapter(ctx context.Context, prefix string, client *s3.Client, blockSize string, cachedBlocks int) error {
	handle, err := osio.S3Handle(ctx, osio.S3Client(client))
	if err != nil {
		return fmt.Errorf("raster: creating S3 handle for %s: %w", prefix, err)
	}
	adapter, err := osio.NewAdapter(handle,
		osio.BlockSize(blockSize),
		osio.NumCachedBlocks(cachedBlocks))
	if err != nil {
		return fmt.Errorf("raster: creating osio adapter for %s: %w", prefix, err)
	}
	if err := godal.RegisterVSIHandler(prefix, adapter); err != nil {
		return fmt.Errorf("raster: registering VSI handler for %s: %w", prefix, err)
	}
	return nil
}

// rewriteURI routes URIs for public buckets through the unsigned
// adapter.
func rewriteURI(uri string, publicBuckets map[string]bool) string {
	rest, ok := strings.CutPrefix(uri, privatePrefix)
	if !ok {
		return uri
	}
	bucket, _, _ := strings.Cut(rest, "/")
	if publicBuckets[bucket] {
		return publicPrefix + rest
	}
	return uri
}
