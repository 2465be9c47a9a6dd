package llm

import (
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{}); err == nil {
		t.Fatalf("expected error when API key is missing")
	}
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	t.Parallel()

	client, err := NewClient(ClientOptions{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client.BaseURL() != defaultBaseURL {
		t.Fatalf("expected base url %q, got %q", defaultBaseURL, client.BaseURL())
	}
}
