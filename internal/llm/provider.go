package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// CredentialChecker is implemented by providers that need a credential
// before they can serve requests.
type CredentialChecker interface {
	CheckCredential() error
}

// ErrMissingCredential is returned when a provider needs an API key and none
// is configured.
var ErrMissingCredential = errors.New("missing API credential")

// ProviderError wraps any failure of an outbound completion call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CheckCredential reports whether p is ready to serve requests. Providers
// that do not implement CredentialChecker are assumed ready.
func CheckCredential(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: no provider configured", ErrMissingCredential)
	}
	if cc, ok := p.(CredentialChecker); ok {
		return cc.CheckCredential()
	}
	return nil
}

// Unavailable is a Provider stand-in used when construction failed, for
// example because the API key is unset. Every call returns the original error.
type Unavailable struct {
	ProviderName string
	Err          error
}

func (u *Unavailable) Name() string { return u.ProviderName }

func (u *Unavailable) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, &ProviderError{Provider: u.ProviderName, Err: u.Err}
}

func (u *Unavailable) CheckCredential() error { return u.Err }
