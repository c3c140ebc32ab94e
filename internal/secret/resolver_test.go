package secret

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type stubSSM map[string]string

func (s stubSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("decryption not requested")
	}
	val, ok := s[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(val)}}, nil
}

func TestSSMResolver(t *testing.T) {
	r := NewSSMResolver(stubSSM{ParamJWTSecret: "signing-key", "/wopigate/blank": ""})
	ctx := context.Background()

	val, err := r.GetSecret(ctx, ParamJWTSecret)
	if err != nil || val != "signing-key" {
		t.Fatalf("GetSecret(%s) = %q, %v", ParamJWTSecret, val, err)
	}
	if _, err := r.GetSecret(ctx, "/wopigate/missing"); err == nil {
		t.Error("expected error for missing parameter")
	}
	if _, err := r.GetSecret(ctx, "/wopigate/blank"); err == nil {
		t.Error("expected error for empty parameter")
	}
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("UNSET_SECRET", "")
	r := NewEnvResolver()

	val, err := r.GetSecret(context.Background(), ParamJWTSecret)
	if err != nil || val != "from-env" {
		t.Fatalf("GetSecret(%s) = %q, %v", ParamJWTSecret, val, err)
	}
	if _, err := r.GetSecret(context.Background(), "/wopigate/unset-secret"); err == nil {
		t.Error("expected error for empty variable")
	}
}

func TestEnvKey(t *testing.T) {
	for in, want := range map[string]string{
		"/wopigate/jwt-secret":        "JWT_SECRET",
		"/wopigate/discovery-api-key": "DISCOVERY_API_KEY",
		"plain":                       "PLAIN",
	} {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveOr(t *testing.T) {
	r := NewSSMResolver(stubSSM{ParamJWTSecret: "from-ssm"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if got := ResolveOr(context.Background(), r, logger, ParamJWTSecret, "fallback"); got != "from-ssm" {
		t.Errorf("expected resolved value, got %q", got)
	}
	if got := ResolveOr(context.Background(), r, logger, "/wopigate/missing", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}
