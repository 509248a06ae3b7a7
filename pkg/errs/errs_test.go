package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validationf("bad input")))
	assert.Equal(t, KindAuthorization, KindOf(Authorizationf("denied")))
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("missing")))
	assert.Equal(t, KindConflict, KindOf(Conflictf("taken")))
	assert.Equal(t, KindNetwork, KindOf(Networkf(errors.New("eof"), "transport")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NotFoundf("group missing")
	wrapped := fmt.Errorf("resolving target: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindConflict))
}

func TestNetworkfWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Networkf(cause, "poll failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "poll failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsNilError(t *testing.T) {
	assert.False(t, Is(nil, KindInternal))
}
