package retry

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictErr is a transient error for tests.
type conflictErr struct{ msg string }

func (e *conflictErr) Error() string     { return e.msg }
func (e *conflictErr) IsTransient() bool { return true }

var errTerminal = errors.New("terminal failure")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Microsecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_TerminalErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errTerminal
	})
	require.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, calls)
}

func TestDo_TransientRetriedUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 4 {
			return &conflictErr{msg: "write conflict"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_ExhaustedReturnsLastTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return &conflictErr{msg: "write conflict"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsTransient(err))
}

func TestDo_WrappedTransientDetected(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return errors.Wrap(&conflictErr{msg: "serialization failure"}, "commit")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func(context.Context) error {
		calls++
		cancel()
		return &conflictErr{msg: "write conflict"}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errTerminal))
	assert.True(t, IsTransient(&conflictErr{msg: "x"}))
	assert.True(t, IsTransient(errors.Wrap(&conflictErr{msg: "x"}, "outer")))
}
