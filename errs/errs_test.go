package errs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), Timeout},
		{"url error deadline", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, Timeout},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, Timeout},
		{"cancelled", context.Canceled, Cancelled},
		{"already classified", E(Catalog, "shopify", errors.New("dup")), Catalog},
		{"fallback", errors.New("boom"), Storage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op", tt.err, Storage)
			assert.Equal(t, tt.want, KindOf(got))
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify("op", nil, Upstream))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Internal))
}

func TestMessage(t *testing.T) {
	err := Errorf(InvalidArgument, "pipeline.validate", "prompt must not be empty")
	assert.Equal(t, "Invalid argument: prompt must not be empty", Message(err))

	wrapped := fmt.Errorf("dream: %w", E(Timeout, "fal.generate", context.DeadlineExceeded))
	assert.Equal(t, "Timed out: context deadline exceeded", Message(wrapped))
	assert.True(t, Is(wrapped, Timeout))
}

func TestKindCode(t *testing.T) {
	assert.Equal(t, "VAL001", InvalidArgument.Code())
	assert.Equal(t, "GEN001", Kind(99).Code())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
