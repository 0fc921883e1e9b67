package artifacts

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
)

type fakeS3 struct {
	keys     []string
	pageSize int
	missing  bool
	failKey  string
	deletes  [][]s3types.ObjectIdentifier
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.missing {
		return nil, &s3types.NoSuchBucket{Message: aws.String("missing")}
	}
	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	end := min(start+f.pageSize, len(f.keys))
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(f.keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deletes = append(f.deletes, in.Delete.Objects)
	out := &s3.DeleteObjectsOutput{}
	for _, o := range in.Delete.Objects {
		if aws.ToString(o.Key) == f.failKey {
			out.Errors = append(out.Errors, s3types.Error{Key: o.Key, Message: aws.String("AccessDenied")})
		}
	}
	return out, nil
}

func TestEmptyRemovesAllObjectsAcrossPages(t *testing.T) {
	api := &fakeS3{pageSize: 700}
	for i := 0; i < 2500; i++ {
		api.keys = append(api.keys, fmt.Sprintf("builds/%04d.zip", i))
	}
	n, err := Empty(context.Background(), api, "myservice-codebuild-artifacts-prod", logr.Discard())
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if n != 2500 || len(api.deletes) != 3 || len(api.deletes[2]) != 500 {
		t.Fatalf("n=%d batches=%d", n, len(api.deletes))
	}
}

func TestEmptyMissingBucket(t *testing.T) {
	api := &fakeS3{missing: true}
	n, err := Empty(context.Background(), api, "gone", logr.Discard())
	if err != nil || n != 0 || len(api.deletes) != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestEmptyReportsPerObjectErrors(t *testing.T) {
	api := &fakeS3{pageSize: 10, keys: []string{"a", "b"}, failKey: "b"}
	if _, err := Empty(context.Background(), api, "bucket", logr.Discard()); err == nil {
		t.Fatalf("expected per-object failure to surface")
	}
}

func TestEmptyEmptyBucketMakesNoDeletes(t *testing.T) {
	api := &fakeS3{pageSize: 10}
	n, err := Empty(context.Background(), api, "bucket", logr.Discard())
	if err != nil || n != 0 || len(api.deletes) != 0 {
		t.Fatalf("n=%d err=%v deletes=%d", n, err, len(api.deletes))
	}
}
