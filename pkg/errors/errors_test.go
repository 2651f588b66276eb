package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorMessage(t *testing.T) {
	err := Validation("vectorstore.Upsert", "embedding dimension %d, want %d", 512, 768)
	assert.Equal(t, "[validation] vectorstore.Upsert: embedding dimension 512, want 768", err.Error())

	bare := New(ClassInternal, "", "boom")
	assert.Equal(t, "[internal] boom", bare.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Unavailable(cause, "embedding.Embed")

	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ClassUnavailable, ClassOf(err))

	// Wrapping again with fmt keeps the chain intact.
	outer := fmt.Errorf("investigator stage: %w", err)
	assert.Equal(t, ClassUnavailable, ClassOf(outer))
	assert.True(t, IsRetryable(outer))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ClassUnavailable, "op", "msg"))
}

func TestClassOfContextDeadline(t *testing.T) {
	assert.Equal(t, ClassTimeout, ClassOf(context.DeadlineExceeded))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.Equal(t, ClassUnknown, ClassOf(stderrors.New("plain")))
	assert.Equal(t, ClassUnknown, ClassOf(nil))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		validation, notFound, schema, timeout, retryable bool
	}{
		{name: "validation", err: Validation("op", "bad"), validation: true},
		{name: "not_found", err: NotFound("op", "missing"), notFound: true},
		{name: "schema", err: Schema(nil, "op", "malformed"), schema: true},
		{name: "timeout", err: Timeout(stderrors.New("deadline"), "op"), timeout: true, retryable: true},
		{name: "unavailable", err: Unavailable(stderrors.New("503"), "op"), retryable: true},
		{name: "rate_limited", err: RateLimited(stderrors.New("429"), "op"), retryable: true},
		{name: "internal", err: Internal(stderrors.New("bug"), "op")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.schema, IsSchema(tt.err))
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := RateLimited(stderrors.New("429"), "embedding.Embed").WithRetryAfter(30 * time.Second)
	assert.Equal(t, 30*time.Second, err.RetryAfter)
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ClassRateLimited},
		{408, ClassTimeout},
		{504, ClassTimeout},
		{404, ClassNotFound},
		{400, ClassValidation},
		{422, ClassValidation},
		{500, ClassUnavailable},
		{502, ClassUnavailable},
		{503, ClassUnavailable},
		{200, ClassUnknown},
		{301, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHTTPStatus(tt.status))
		})
	}
}
