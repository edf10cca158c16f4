package schedule

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every tuesday", nil, zerolog.Nop())
	assert.Error(t, err)

	for _, spec := range []string{"@daily", "*/5 * * * *", "0 9 * * 1-5"} {
		_, err := New(spec, nil, zerolog.Nop())
		assert.NoError(t, err, spec)
	}
}

func TestNext(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, zerolog.Nop())
	require.NoError(t, err)

	from := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC), s.Next(from))
}

func TestRunNowAndStop(t *testing.T) {
	s, err := New("@yearly", time.UTC, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		}, true)
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJobErrorIsLogged(t *testing.T) {
	var buf syncBuffer
	s, err := New("@yearly", time.UTC, zerolog.New(&buf))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	go func() {
		_ = s.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return errors.New("catalog unreachable")
		}, true)
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "scheduler stopped")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "catalog unreachable")
}

func TestCronLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{log: zerolog.New(&buf)}
	l.Error(errors.New("boom"), "panic", "job", "price")
	assert.Contains(t, buf.String(), `"job":"price"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}
