// Package awsx holds the AWS collaborators: Secrets Manager for client
// credentials, S3 for audit snapshots and SESv2 for report delivery.
package awsx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// ErrSecretNotFound is returned when the requested secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

const resourceNotFoundException = "ResourceNotFoundException"

// LoadConfig loads the default AWS configuration for the given region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretStore reads JSON secrets from AWS Secrets Manager.
type SecretStore struct {
	api secretsAPI
	log *slog.Logger
}

func NewSecretStore(cfg aws.Config, logger *slog.Logger) *SecretStore {
	return &SecretStore{
		api: secretsmanager.NewFromConfig(cfg),
		log: logger,
	}
}

// GetSecret fetches one secret and decodes it as a flat JSON object.
// Non-string values are stringified so callers get uniform key/value pairs.
func (s *SecretStore) GetSecret(ctx context.Context, name string) (map[string]string, error) {
	if name == "" {
		return nil, errors.New("secret name cannot be empty")
	}

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == resourceNotFoundException {
			return nil, fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
		}
		if s.log != nil {
			s.log.ErrorContext(ctx, "failed to retrieve secret", "secret_name", name, "error", err)
		}
		return nil, fmt.Errorf("get secret %q: %w", name, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, fmt.Errorf("secret %q has neither string nor binary value", name)
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode secret %q as JSON: %w", name, err)
	}

	secret := make(map[string]string, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case string:
			secret[k] = t
		case float64:
			// JSON numbers: render integers without a decimal point.
			if t == float64(int64(t)) {
				secret[k] = fmt.Sprintf("%d", int64(t))
			} else {
				secret[k] = fmt.Sprintf("%v", t)
			}
		case nil:
			secret[k] = ""
		default:
			secret[k] = fmt.Sprintf("%v", t)
		}
	}
	return secret, nil
}
