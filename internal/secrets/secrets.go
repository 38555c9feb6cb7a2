// Package secrets resolves the Sophia API credential from AWS Secrets
// Manager, so deployments never carry the password in their environment.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"

	"github.com/escolaware/portaria-bridge/internal/config"
)

// SecretsClient defines the AWS API surface required to fetch the Sophia
// password.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolve fills in the Sophia password from Secrets Manager when the
// configuration names a secret ARN. A directly configured password is
// left untouched.
func Resolve(ctx context.Context, cfg *config.SophiaConfig) error {
	if cfg.PasswordSecretARN == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("AWS configuration failed: %w", err)
	}

	return ResolveWithClient(ctx, cfg, secretsmanager.NewFromConfig(awsCfg))
}

// ResolveWithClient is Resolve with the AWS client supplied by the caller.
func ResolveWithClient(ctx context.Context, cfg *config.SophiaConfig, client SecretsClient) error {
	if cfg.PasswordSecretARN == "" {
		return nil
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.PasswordSecretARN),
	})
	if err != nil {
		return fmt.Errorf("could not fetch Sophia credential: %w", err)
	}

	if out.SecretString == nil || *out.SecretString == "" {
		return fmt.Errorf("Sophia credential secret %s is empty", cfg.PasswordSecretARN)
	}

	cfg.Password = *out.SecretString
	log.Info().Msg("sophia credential resolved from secrets manager")

	return nil
}
