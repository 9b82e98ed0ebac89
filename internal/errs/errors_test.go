package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"not connected", New(ErrKindNotConnected, "Not connected"), IsNotConnected},
		{"connection failed", Wrap(ErrKindConnectionFailed, "dial", errors.New("refused")), IsConnectionFailed},
		{"timeout", Wrap(ErrKindTimeout, "query", errors.New("deadline")), IsTimeout},
		{"generation", New(ErrKindGenerationFailed, "empty"), IsGenerationFailed},
		{"query", New(ErrKindQueryFailed, "bad"), IsQueryFailed},
		{"rejected", New(ErrKindRejected, "DELETE"), IsRejected},
		{"invalid input", New(ErrKindInvalidInput, "sql is required"), IsInvalidInput},
		{"wrapped by fmt", fmt.Errorf("handler: %w", New(ErrKindRejected, "x")), IsRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
		})
	}

	assert.False(t, IsNotConnected(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, Kind(errors.New("plain")))
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "[rejected] only SELECT", New(ErrKindRejected, "only SELECT").Error())
	assert.Equal(t,
		"[query_failed] query failed: Table 'shop.nope' doesn't exist",
		Wrap(ErrKindQueryFailed, "query failed", errors.New("Table 'shop.nope' doesn't exist")).Error(),
	)
}

func TestMessage(t *testing.T) {
	driverErr := errors.New("Access denied for user 'bob'@'localhost'")

	assert.Equal(t, "Access denied for user 'bob'@'localhost'",
		Message(Wrap(ErrKindConnectionFailed, "connect failed", driverErr)))
	assert.Equal(t, "Not connected", Message(New(ErrKindNotConnected, "Not connected")))
	assert.Equal(t, "Access denied for user 'bob'@'localhost'",
		Message(Wrap(ErrKindConnectionFailed, "outer", Wrap(ErrKindConnectionFailed, "inner", driverErr))))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "statement is not a single valid SELECT: syntax error at position 5",
		Message(Wrap(ErrKindRejected, "statement is not a single valid SELECT", errors.New("syntax error at position 5"))))
	assert.Equal(t, "only SELECT statements may be executed, got DELETE",
		Message(New(ErrKindRejected, "only SELECT statements may be executed, got DELETE")))
	assert.Equal(t, "", Message(nil))
}
