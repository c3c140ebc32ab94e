package crypto

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const mockPrefix = "mock:"

// MockEncryptor implements Encryptor without KMS, for DEV_MODE and tests.
// Values are only base64 encoded: it hides nothing.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return mockPrefix + base64.RawURLEncoding.EncodeToString([]byte(plaintext)), nil
}

func (m *MockEncryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, mockPrefix) {
		return "", fmt.Errorf("not a mock ciphertext")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, mockPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	return string(decoded), nil
}
