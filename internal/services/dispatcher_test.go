package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 收集异步任务的失败
type recordingSink struct {
	mu     sync.Mutex
	errors map[string][]error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{errors: map[string][]error{}}
}

func (s *recordingSink) Sink(task string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[task] = append(s.errors[task], err)
}

func (s *recordingSink) For(task string) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors[task]...)
}

func TestDispatcher_RunsTasksAndReportsFailures(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(2, 10, time.Second, sink.Sink, nil)
	defer d.Close()

	var ran int32
	boom := errors.New("boom")
	require.True(t, d.Submit("ok", func(context.Context) error { atomic.AddInt32(&ran, 1); return nil }))
	require.True(t, d.Submit("bad", func(context.Context) error { atomic.AddInt32(&ran, 1); return boom }))
	require.True(t, d.Submit("panics", func(context.Context) error { panic("kaboom") }))
	d.Wait()

	assert.EqualValues(t, 2, atomic.LoadInt32(&ran))
	assert.Empty(t, sink.For("ok"))
	assert.Equal(t, []error{boom}, sink.For("bad"))
	require.Len(t, sink.For("panics"), 1)
	assert.Contains(t, sink.For("panics")[0].Error(), "kaboom")
}

func TestDispatcher_TaskContextHasTimeout(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(1, 1, 20*time.Millisecond, sink.Sink, nil)
	defer d.Close()

	d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d.Wait()
	require.Len(t, sink.For("slow"), 1)
	assert.ErrorIs(t, sink.For("slow")[0], context.DeadlineExceeded)
}

func TestDispatcher_FullQueueDropsTask(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(1, 1, time.Second, sink.Sink, nil)
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.True(t, d.Submit("queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit("dropped", func(context.Context) error { return nil }))
	assert.Equal(t, []error{ErrDispatcherBusy}, sink.For("dropped"))

	close(release)
	d.Wait()
	assert.Empty(t, sink.For("queued"))
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(1, 1, time.Second, sink.Sink, nil)
	d.Close()
	d.Close()

	assert.False(t, d.Submit("late", func(context.Context) error { return nil }))
	assert.Equal(t, []error{ErrDispatcherClosed}, sink.For("late"))
}
