package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("dial tcp: connection refused")

	t.Run("direct code", func(t *testing.T) {
		err := Wrap(base, CodeNetwork, "recognition service unreachable")
		assert.True(t, HasCode(err, CodeNetwork))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.ErrorIs(t, err, base)
	})

	t.Run("nested codes are both visible", func(t *testing.T) {
		inner := Wrap(base, CodeNetwork, "lookup failed")
		outer := Wrap(inner, CodeCameraTimeout, "camera did not start")
		assert.True(t, HasCode(outer, CodeNetwork))
		assert.True(t, HasCode(outer, CodeCameraTimeout))
		assert.Equal(t, CodeCameraTimeout, CodeOf(outer))
	})

	t.Run("fmt wrapping keeps the code reachable", func(t *testing.T) {
		err := fmt.Errorf("cycle: %w", New(CodeNoMatch, "below threshold"))
		assert.True(t, HasCode(err, CodeNoMatch))
		assert.Equal(t, "below threshold", MessageOf(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.False(t, HasCode(base, CodeInternal))
		assert.Equal(t, base.Error(), MessageOf(base))
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeNetwork, "unused"))
}

func TestIsCamera(t *testing.T) {
	for _, c := range []Code{CodeCameraPermission, CodeCameraUnavailable, CodeCameraBusy, CodeCameraTimeout, CodeCameraUnknown} {
		assert.True(t, IsCamera(c), c)
	}
	assert.False(t, IsCamera(CodeNetwork))
}
