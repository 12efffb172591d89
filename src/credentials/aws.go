package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of the Secrets Manager client the AWS
// store uses.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads credentials from AWS Secrets Manager. Each reference maps
// to one secret (prefix + reference) holding an Entry as JSON.
type AWSStore struct {
	client SecretsManagerAPI
	prefix string
}

// NewAWSStore creates a store using the default AWS credential chain.
func NewAWSStore(ctx context.Context, region, prefix string) (*AWSStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSStoreWithClient(secretsmanager.NewFromConfig(awsCfg), prefix), nil
}

// NewAWSStoreWithClient creates a store around an existing client.
func NewAWSStoreWithClient(client SecretsManagerAPI, prefix string) *AWSStore {
	return &AWSStore{client: client, prefix: prefix}
}

// Name implements Store.
func (s *AWSStore) Name() string { return "aws" }

// Lookup implements Store.
func (s *AWSStore) Lookup(ctx context.Context, id string) (*Entry, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.prefix + id),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return nil, &StoreError{Store: s.Name(), ID: id, Err: ErrCredentialNotFound}
		}
		return nil, &StoreError{Store: s.Name(), ID: id, Err: err}
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, &StoreError{Store: s.Name(), ID: id, Err: fmt.Errorf("secret has no value: %w", ErrInvalidCredential)}
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, &StoreError{Store: s.Name(), ID: id, Err: fmt.Errorf("secret is not a JSON credential: %w", ErrInvalidCredential)}
	}
	return &e, nil
}
