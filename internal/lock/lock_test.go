package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

func TestGuardAcquireRelease(t *testing.T) {
	g := New(time.Second)

	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
}

func TestGuardTimeoutReturnsBusy(t *testing.T) {
	g := New(50 * time.Millisecond)

	require.NoError(t, g.Acquire(context.Background()))
	defer g.Release()

	err := g.Acquire(context.Background())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrBusy.Code, appErr.Code)
}

func TestGuardContextCancellation(t *testing.T) {
	g := New(time.Minute)

	require.NoError(t, g.Acquire(context.Background()))
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := g.Acquire(ctx)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrBusy.Code, appErr.Code)
}

func TestGuardSerializesWaiters(t *testing.T) {
	g := New(time.Second)

	require.NoError(t, g.Acquire(context.Background()))

	done := make(chan struct{})
	go func() {
		require.NoError(t, g.Acquire(context.Background()))
		g.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock after release")
	}
}
