// Package secret resolves the gateway's signing secrets, from SSM Parameter
// Store in AWS and from the environment in DEV_MODE.
package secret

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter names read at startup.
const (
	ParamJWTSecret = "/wopigate/jwt-secret"
)

// SSMClient is the part of *ssm.Client the gateway needs.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type SSMResolver struct {
	client SSMClient
}

func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

// GetSecret reads a SecureString parameter, decrypted.
func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s is empty", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// EnvResolver maps a parameter path to an environment variable: the last
// path segment, upper-cased, dashes turned into underscores.
type EnvResolver struct{}

func NewEnvResolver() Resolver {
	return &EnvResolver{}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	key := envKey(name)
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%s is not set (parameter %s)", key, name)
}

// envKey("/wopigate/jwt-secret") == "JWT_SECRET"
func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(path.Base(name), "-", "_"))
}

// ResolveOr returns the secret stored under name, or fallback when it cannot
// be resolved. The failure is logged without the value.
func ResolveOr(ctx context.Context, r Resolver, logger *slog.Logger, name, fallback string) string {
	val, err := r.GetSecret(ctx, name)
	if err != nil {
		logger.Warn("secret not resolved, using fallback", "param", name, "err", err)
		return fallback
	}
	return val
}
