package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/go-logr/logr"
)

// deleteBatch is the BatchDeleteImage limit.
const deleteBatch = 100

// Purge deletes every image in repository. A missing repository counts as
// already empty.
func Purge(ctx context.Context, api ECRAPI, repository string, log logr.Logger) (int, error) {
	var ids []ecrtypes.ImageIdentifier
	p := ecr.NewListImagesPaginator(api, &ecr.ListImagesInput{RepositoryName: aws.String(repository)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			var nf *ecrtypes.RepositoryNotFoundException
			if errors.As(err, &nf) {
				log.Info("repository does not exist, nothing to remove", "repository", repository)
				return 0, nil
			}
			return 0, fmt.Errorf("list images in %s: %w", repository, err)
		}
		ids = append(ids, page.ImageIds...)
	}

	deleted := 0
	for start := 0; start < len(ids); start += deleteBatch {
		end := min(start+deleteBatch, len(ids))
		out, err := api.BatchDeleteImage(ctx, &ecr.BatchDeleteImageInput{
			RepositoryName: aws.String(repository),
			ImageIds:       ids[start:end],
		})
		if err != nil {
			return deleted, fmt.Errorf("delete images in %s: %w", repository, err)
		}
		deleted += len(out.ImageIds)
		if len(out.Failures) > 0 {
			f := out.Failures[0]
			return deleted, fmt.Errorf("delete images in %s: %d failed, first: %s %s", repository, len(out.Failures), f.FailureCode, aws.ToString(f.FailureReason))
		}
	}
	log.Info("removed images", "repository", repository, "count", deleted)
	return deleted, nil
}
