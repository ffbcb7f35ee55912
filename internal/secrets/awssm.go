// File: internal/secrets/awssm.go
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// SecretsManagerAPI abstracts the Secrets Manager client for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

// Manager implements Store on AWS Secrets Manager, the provider the reset
// workflow targets.
type Manager struct {
	client SecretsManagerAPI
	log    *zap.Logger
}

var _ Store = (*Manager)(nil)

// NewManager creates a Secrets Manager backed store using the default AWS
// credential chain.
func NewManager(ctx context.Context, region string, logger *zap.Logger) (*Manager, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewManagerWithClient(secretsmanager.NewFromConfig(awsCfg), logger), nil
}

// NewManagerWithClient wires an explicit API client. Tests use this.
func NewManagerWithClient(client SecretsManagerAPI, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		log:    logger.Named("secrets"),
	}
}

func (m *Manager) Get(ctx context.Context, secretID string) (Payload, error) {
	raw, err := m.GetString(ctx, secretID)
	if err != nil {
		return nil, err
	}
	payload, err := DecodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", secretID, err)
	}
	return payload, nil
}

func (m *Manager) GetString(ctx context.Context, secretID string) (string, error) {
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", translateAPIError(secretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q: %w: binary payloads are not supported", secretID, ErrMalformedPayload)
	}
	return *out.SecretString, nil
}

func (m *Manager) Patch(ctx context.Context, secretID string, updates Payload) error {
	current, err := m.Get(ctx, secretID)
	if err != nil {
		return err
	}

	encoded, err := EncodePayload(current.Merge(updates))
	if err != nil {
		return err
	}

	if _, err := m.client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(secretID),
		SecretString: aws.String(encoded),
	}); err != nil {
		return translateAPIError(secretID, err)
	}

	m.log.Info("Secret payload patched", zap.String("secret_id", secretID))
	return nil
}

// translateAPIError maps provider errors onto the package's taxonomy.
func translateAPIError(secretID string, err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("secret %q: %w", secretID, ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		return fmt.Errorf("secret %q: %w", secretID, ErrAccessDenied)
	}

	return fmt.Errorf("secret %q: store request failed: %w", secretID, err)
}
