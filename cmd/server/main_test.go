package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/CrewImport/internal/core"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeServer struct {
	rec *recorder
	err error
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.rec.add("server shutdown")
	return s.err
}

type recordingLimiter struct {
	*core.ImportLimiter
	rec *recorder
}

func (l recordingLimiter) WaitForDrain(ctx context.Context) error {
	l.rec.add("drain start")
	err := l.ImportLimiter.WaitForDrain(ctx)
	l.rec.add("drain done")
	return err
}

func TestShutdown_StopsIntakeBeforeDrain(t *testing.T) {
	rec := &recorder{}
	limiter := core.NewImportLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- shutdown(context.Background(), &fakeServer{rec: rec}, recordingLimiter{limiter, rec})
	}()

	require.Eventually(t, func() bool {
		return len(rec.list()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"server shutdown", "drain start"}, rec.list())

	limiter.Release()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"server shutdown", "drain start", "drain done"}, rec.list())
}

func TestShutdown_NoActiveImports(t *testing.T) {
	rec := &recorder{}
	limiter := core.NewImportLimiter(1, time.Second)

	err := shutdown(context.Background(), &fakeServer{rec: rec}, recordingLimiter{limiter, rec})
	require.NoError(t, err)
	assert.Equal(t, []string{"server shutdown"}, rec.list())
}

func TestShutdown_DrainTimeout(t *testing.T) {
	rec := &recorder{}
	limiter := core.NewImportLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	serverErr := errors.New("close listener")
	err := shutdown(ctx, &fakeServer{rec: rec, err: serverErr}, recordingLimiter{limiter, rec})
	require.Error(t, err)
	assert.ErrorIs(t, err, serverErr)
	assert.Equal(t, "server shutdown", rec.list()[0])
}
