package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelope_Lifecycle(t *testing.T) {
	env := NewEnvelope()
	assert.Equal(t, StatusIdle, env.State().Status)

	env.Start()
	assert.Equal(t, StatusPending, env.State().Status)

	env.SetProgress(40)
	assert.Equal(t, 40, env.State().Progress)

	env.Succeed()
	state := env.State()
	assert.Equal(t, StatusSuccess, state.Status)
	assert.Equal(t, 100, state.Progress)
}

func TestEnvelope_FailCarriesMessage(t *testing.T) {
	env := NewEnvelope()
	env.Start()
	env.Fail("upload failed")

	state := env.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "upload failed", state.Error)
}

// TestEnvelope_ProgressOnlyWhilePending verifies progress updates are ignored
// once the operation settled
func TestEnvelope_ProgressOnlyWhilePending(t *testing.T) {
	env := NewEnvelope()
	env.SetProgress(10)
	assert.Equal(t, 0, env.State().Progress, "idle envelope ignores progress")

	env.Start()
	env.Succeed()
	env.SetProgress(10)
	assert.Equal(t, 100, env.State().Progress)
}

func TestEnvelope_ProgressClamped(t *testing.T) {
	env := NewEnvelope()
	env.Start()

	env.SetProgress(250)
	assert.Equal(t, 100, env.State().Progress)

	env.SetProgress(-5)
	assert.Equal(t, 0, env.State().Progress)
}

// TestEnvelope_ResetAllowsRetry verifies reset returns to idle after both
// terminal states
func TestEnvelope_ResetAllowsRetry(t *testing.T) {
	env := NewEnvelope()
	env.Start()
	env.Fail("boom")

	env.Reset()
	state := env.State()
	assert.Equal(t, StatusIdle, state.Status)
	assert.Equal(t, 0, state.Progress)
	assert.Empty(t, state.Error)

	env.Start()
	env.Succeed()
	env.Reset()
	assert.Equal(t, StatusIdle, env.State().Status)
}
