package stack

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

// Validate lints each rendered body locally and then asks CloudFormation to
// validate it. The first invalid template aborts.
func Validate(ctx context.Context, api CloudFormationAPI, ds []templates.Descriptor, log logr.Logger) error {
	for _, d := range ds {
		log.Info("validating template", "template", d.Filename, "stack", d.StackName)
		if err := lint(d); err != nil {
			return err
		}
		if _, err := api.ValidateTemplate(ctx, &cloudformation.ValidateTemplateInput{TemplateBody: aws.String(d.Body)}); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalidTemplate, d.Filename, err)
		}
	}
	return nil
}

// lint requires the body to be a single YAML mapping. Short-form intrinsic
// tags such as !Ref are accepted.
func lint(d templates.Descriptor) error {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(d.Body), &doc); err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidTemplate, d.Filename, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w %s: top level must be a mapping", ErrInvalidTemplate, d.Filename)
	}
	return nil
}
