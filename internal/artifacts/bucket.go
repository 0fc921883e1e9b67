// Package artifacts empties the build artifacts bucket before teardown so the
// stack that owns it can be deleted.
package artifacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
)

// deleteBatch is the DeleteObjects limit.
const deleteBatch = 1000

type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Empty deletes every object in bucket and returns how many were removed.
// A bucket that does not exist is already empty.
func Empty(ctx context.Context, api S3API, bucket string, log logr.Logger) (int, error) {
	var keys []s3types.ObjectIdentifier
	p := s3.NewListObjectsV2Paginator(api, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			var nb *s3types.NoSuchBucket
			if errors.As(err, &nb) {
				log.Info("bucket does not exist, nothing to remove", "bucket", bucket)
				return 0, nil
			}
			return 0, fmt.Errorf("list objects in %s: %w", bucket, err)
		}
		for _, o := range page.Contents {
			keys = append(keys, s3types.ObjectIdentifier{Key: o.Key})
		}
	}

	removed := 0
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		out, err := api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: keys[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return removed, fmt.Errorf("delete objects in %s: %w", bucket, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return removed, fmt.Errorf("delete objects in %s: %d failed, first %s: %s", bucket, len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
		removed += end - start
	}
	log.Info("removed artifacts", "bucket", bucket, "count", removed)
	return removed, nil
}
