package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryLockExclusive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "op-heads")
	l1 := New(p)
	require.NoError(t, l1.TryLock())
	defer l1.Unlock()

	l2 := New(p)
	err := l2.TryLock()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLocked))
}

func TestUnlockAllowsReacquire(t *testing.T) {
	p := filepath.Join(t.TempDir(), "wc")
	l1 := New(p)
	require.NoError(t, l1.TryLock())
	require.NoError(t, l1.Unlock())

	l2 := New(p)
	require.NoError(t, l2.TryLock())
	require.NoError(t, l2.Unlock())
}

func TestDoRunsExclusively(t *testing.T) {
	p := filepath.Join(t.TempDir(), "index")
	order := []int{}
	done := make(chan struct{})

	go func() {
		_ = Do(context.Background(), p, func() error {
			time.Sleep(20 * time.Millisecond)
			order = append(order, 1)
			return nil
		})
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, Do(context.Background(), p, func() error {
		order = append(order, 2)
		return nil
	}))
	<-done
	require.Equal(t, []int{1, 2}, order)
}

func TestLockContextCancellation(t *testing.T) {
	p := filepath.Join(t.TempDir(), "busy")
	holder := New(p)
	require.NoError(t, holder.TryLock())
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter := New(p)
	err := waiter.Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
