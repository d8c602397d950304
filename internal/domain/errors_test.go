package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := RemoteError("ask failed", cause)

	assert.Equal(t, "[remote] ask failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[store] locked", StoreError("locked", nil).Error())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("handle: %w", StoreError("append", nil))

	assert.True(t, IsType(wrapped, ErrorTypeStore))
	assert.False(t, IsType(wrapped, ErrorTypeRemote))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeStore))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Server error", UserMessage(RemoteError("ask", errors.New("Server error"))))
	assert.Equal(t, "microphone busy", UserMessage(VoiceError("microphone busy", nil)))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestConstructorsSetType(t *testing.T) {
	tests := []struct {
		err  *Error
		want ErrorType
	}{
		{RemoteError("x", nil), ErrorTypeRemote},
		{StoreError("x", nil), ErrorTypeStore},
		{VoiceError("x", nil), ErrorTypeVoice},
		{ValidationError("x", nil), ErrorTypeValidation},
		{ConfigError("x", nil), ErrorTypeConfig},
		{NewError(ErrorTypeConnectivity, "x", nil), ErrorTypeConnectivity},
	}
	for _, tc := range tests {
		assert.Equal(t, "["+string(tc.want)+"] x", tc.err.Error())
		assert.True(t, IsType(tc.err, tc.want))
	}
}
