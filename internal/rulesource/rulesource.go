// Package rulesource fetches rule files from local paths or from S3, for
// centrally distributed rule files.
package rulesource

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

// IsS3 reports whether ref names an S3 object.
func IsS3(ref string) bool {
	return strings.HasPrefix(ref, s3Scheme)
}

// Open returns a reader for the rule file named by ref: either a local path
// or s3://bucket/key. The caller closes the reader.
func Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if IsS3(ref) {
		return openS3(ctx, ref)
	}
	return os.Open(ref)
}

func openS3(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := splitS3Ref(ref)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if key := os.Getenv("PERMTREE_S3_ACCESS_KEY"); key != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, os.Getenv("PERMTREE_S3_SECRET_KEY"), ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := os.Getenv("PERMTREE_S3_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return resp.Body, nil
}

func splitS3Ref(ref string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(ref, s3Scheme)
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 ref %q, want s3://bucket/key", ref)
	}
	return bucket, key, nil
}
