package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_StagesRunInPriorityOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	h := NewHandler(Config{Timeout: time.Second})
	h.RegisterFunc("store", PriorityStorage, record("store"))
	h.RegisterFunc("http", PriorityHTTP, record("http"))
	h.RegisterFunc("live", PriorityLive, record("live"))

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"http", "live", "store"}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

func TestShutdown_SamePriorityRunsConcurrently(t *testing.T) {
	a, b := make(chan struct{}), make(chan struct{})
	h := NewHandler(Config{Timeout: time.Second})
	h.RegisterFunc("drafts", PriorityStorage, func(ctx context.Context) error {
		close(a)
		select {
		case <-b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	h.RegisterFunc("store", PriorityStorage, func(ctx context.Context) error {
		close(b)
		select {
		case <-a:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	assert.NoError(t, h.Shutdown())
}

func TestShutdown_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewHandler(Config{Timeout: time.Second})
	h.RegisterFunc("a", 1, func(context.Context) error { return boom })
	ran := false
	h.RegisterFunc("b", 2, func(context.Context) error { ran = true; return nil })

	err := h.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a: boom")
	assert.True(t, ran)
}

func TestShutdown_Timeout(t *testing.T) {
	h := NewHandler(Config{Timeout: 20 * time.Millisecond})
	h.RegisterFunc("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ran := false
	h.RegisterFunc("after", 2, func(context.Context) error { ran = true; return nil })

	err := h.Shutdown()
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.False(t, ran)
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestWait_ContextCancel(t *testing.T) {
	c := &closer{}
	h := NewHandler(Config{})
	h.Register(Closer("audit", PriorityLast, c))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.Wait(ctx))
	assert.True(t, c.closed)

	assert.NoError(t, h.Wait(context.Background()), "a finished handler returns at once")
}
