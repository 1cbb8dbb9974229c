package auth

import (
	"errors"
	"testing"

	"github.com/tonykolomeytsev/figx/internal/figerr"
)

type fakeSource struct {
	token string
	err   error
}

func (f fakeSource) Token() (string, error) { return f.token, f.err }
func (f fakeSource) Describe() string       { return "fake" }

func TestChainReturnsFirstNonEmptyToken(t *testing.T) {
	t.Parallel()

	c := Chain{fakeSource{token: ""}, fakeSource{token: "fig_123"}, fakeSource{token: "fig_unused"}}
	token, err := c.Resolve("icons")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if token != "fig_123" {
		t.Fatalf("token = %q, want fig_123", token)
	}
}

func TestChainAllEmptyIsCredentialError(t *testing.T) {
	t.Parallel()

	c := Chain{fakeSource{}, fakeSource{}}
	_, err := c.Resolve("icons")
	if figerr.KindOf(err) != figerr.KindCredential {
		t.Fatalf("error = %v, want credential error", err)
	}
}

func TestChainPropagatesSourceFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("keychain locked")
	c := Chain{fakeSource{err: boom}}
	_, err := c.Resolve("icons")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want propagated source failure", err)
	}
}

func TestEnvSourceReadsEnvironment(t *testing.T) {
	t.Setenv("FIGX_TEST_TOKEN", "fig_env")
	token, err := Env("FIGX_TEST_TOKEN").Token()
	if err != nil || token != "fig_env" {
		t.Fatalf("Token = %q, %v", token, err)
	}
}

func TestDefaultChainUsesDefaultEnvVar(t *testing.T) {
	t.Setenv(DefaultEnvVar, "fig_default")
	token, err := Chain(nil).Resolve("icons")
	if err != nil || token != "fig_default" {
		t.Fatalf("Resolve = %q, %v", token, err)
	}
}
