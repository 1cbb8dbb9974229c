// Package auth resolves Figma access tokens from the token-source chain a
// remote declares: explicit value, environment variable, or the OS
// keychain. The first source that yields a non-empty token wins.
package auth

import (
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/tonykolomeytsev/figx/internal/figerr"
)

const (
	// DefaultEnvVar is consulted when a remote declares no token source.
	DefaultEnvVar = "FIGMA_PERSONAL_TOKEN"

	keyringService = "figx-auth-service"
	keyringUser    = "figx-default-user"
)

// TokenSource yields a token or an empty string when the source has
// nothing to offer. Hard failures (keychain unavailable) are errors.
type TokenSource interface {
	Token() (string, error)
	Describe() string
}

// Static is a token written verbatim into the manifest.
type Static string

func (s Static) Token() (string, error) { return string(s), nil }
func (s Static) Describe() string       { return "explicit value" }

// Env reads the token from an environment variable.
type Env string

func (e Env) Token() (string, error) { return os.Getenv(string(e)), nil }
func (e Env) Describe() string       { return fmt.Sprintf("env %s", string(e)) }

// Keychain reads the token stored by `figx auth`.
type Keychain struct{}

func (Keychain) Token() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("keychain: %w", err)
	}
	return token, nil
}

func (Keychain) Describe() string { return "os keychain" }

// Chain is an ordered list of sources.
type Chain []TokenSource

// Resolve returns the first non-empty token. When every source comes up
// empty the result is a CredentialError for remoteID, surfaced before any
// network call is made.
func (c Chain) Resolve(remoteID string) (string, error) {
	sources := c
	if len(sources) == 0 {
		sources = Chain{Env(DefaultEnvVar)}
	}
	for _, src := range sources {
		token, err := src.Token()
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", figerr.Credential(remoteID)
}

// StoreKeychainToken persists the token for later Keychain resolution.
func StoreKeychainToken(token string) error {
	return keyring.Set(keyringService, keyringUser, token)
}

// LoadKeychainToken reads the stored token, empty when absent.
func LoadKeychainToken() (string, error) {
	return Keychain{}.Token()
}
