// Package secretstore resolves the Airflow Fernet key. An existing key is
// read from Secrets Manager; otherwise a fresh one is generated and handed to
// the templates, which store it as part of the stack.
package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/fernet/fernet-go"
	"github.com/go-logr/logr"
)

// ErrMalformedSecret is returned when the secret exists but carries no usable key.
var ErrMalformedSecret = errors.New("malformed fernet secret")

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Source reports where the key came from.
type Source string

const (
	SourceSecretsManager Source = "secretsmanager"
	SourceGenerated      Source = "generated"
)

type payload struct {
	FernetKey string `json:"fernet_key"`
}

// FernetKey returns the key stored under secretID, or a newly generated key
// when the secret does not exist yet. Any other lookup error is returned.
func FernetKey(ctx context.Context, api SecretsAPI, secretID string, log logr.Logger) (string, Source, error) {
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if !errors.As(err, &nf) {
			return "", "", fmt.Errorf("get secret %s: %w", secretID, err)
		}
		key, err := Generate()
		if err != nil {
			return "", "", err
		}
		log.Info("fernet key not found in Secrets Manager, generated a new one; the stack will store it", "secret", secretID)
		return key, SourceGenerated, nil
	}

	var p payload
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &p); err != nil {
		return "", "", fmt.Errorf("%w %s: %v", ErrMalformedSecret, secretID, err)
	}
	if _, err := fernet.DecodeKey(p.FernetKey); err != nil {
		return "", "", fmt.Errorf("%w %s: %v", ErrMalformedSecret, secretID, err)
	}
	log.Info("fernet key found in Secrets Manager", "secret", secretID)
	return p.FernetKey, SourceSecretsManager, nil
}

// Generate returns a new url-safe base64 encoded 32-byte key.
func Generate() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate fernet key: %w", err)
	}
	return k.Encode(), nil
}
