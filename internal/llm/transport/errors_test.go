package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{
			name: "rate limited",
			err:  &ProviderError{Provider: "ollama", StatusCode: 429},
			want: true,
		},
		{
			name: "server error",
			err:  &ProviderError{Provider: "openai", StatusCode: 503},
			want: true,
		},
		{
			name: "client error",
			err:  &ProviderError{Provider: "openai", StatusCode: 401},
			want: false,
		},
		{
			name: "wrapped provider error",
			err:  fmt.Errorf("call failed: %w", &ProviderError{StatusCode: 500}),
			want: true,
		},
		{
			name: "network error",
			err:  &net.DNSError{Err: "no such host", IsTimeout: false},
			want: true,
		},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProviderErrorRetryAfter(t *testing.T) {
	err := &ProviderError{Provider: "openai", StatusCode: 429, RetryAfter: 5 * time.Second}
	assert.Equal(t, 5*time.Second, err.GetRetryAfter())
	assert.Contains(t, err.Error(), "status 429")

	noHint := &ProviderError{StatusCode: 500}
	assert.Zero(t, noHint.GetRetryAfter())
}
