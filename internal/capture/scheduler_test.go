package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/types"
)

// fakeSource serves a fixed app and a fixed frame payload.
type fakeSource struct {
	mu     sync.Mutex
	app    types.AppInfo
	appErr error
	frame  []byte
	capErr error
}

func (f *fakeSource) CurrentApp() (types.AppInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app, f.appErr
}

func (f *fakeSource) CaptureFrame() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.capErr
}

func (f *fakeSource) setApp(app types.AppInfo) {
	f.mu.Lock()
	f.app = app
	f.mu.Unlock()
}

// fakeProcessor records every call; an optional gate blocks Process until
// released so tests can hold the worker busy.
type fakeProcessor struct {
	mu      sync.Mutex
	frames  []types.CapturedFrame
	flushes int
	gate    chan struct{}
}

func (f *fakeProcessor) Process(_ context.Context, frame *types.CapturedFrame) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.frames = append(f.frames, *frame)
	f.mu.Unlock()
}

func (f *fakeProcessor) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func (f *fakeProcessor) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeProcessor) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

func newTestScheduler(t *testing.T, source Source, processor Processor, exclusions []string) *Scheduler {
	t.Helper()
	s := NewScheduler(source, processor, 10*time.Millisecond, exclusions, logging.Nop(), nil)
	t.Cleanup(s.Stop)
	return s
}

func TestSchedulerCapturesFrames(t *testing.T) {
	source := &fakeSource{
		app:   types.AppInfo{BundleID: "com.editor.app", Name: "Editor"},
		frame: []byte("pixels"),
	}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, nil)

	s.Start()
	require.Eventually(t, func() bool { return processor.frameCount() >= 2 }, time.Second, 5*time.Millisecond)

	processor.mu.Lock()
	first := processor.frames[0]
	processor.mu.Unlock()
	assert.Equal(t, "com.editor.app", first.Source.BundleID)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	source := &fakeSource{app: types.AppInfo{BundleID: "a"}, frame: []byte("x")}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, nil)

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestSchedulerStopFlushes(t *testing.T) {
	source := &fakeSource{app: types.AppInfo{BundleID: "a"}, frame: []byte("x")}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, nil)

	s.Start()
	require.Eventually(t, func() bool { return processor.frameCount() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 1, processor.flushCount())
}

func TestSchedulerToggle(t *testing.T) {
	source := &fakeSource{app: types.AppInfo{BundleID: "a"}, frame: []byte("x")}
	s := newTestScheduler(t, source, &fakeProcessor{}, nil)

	assert.True(t, s.Toggle())
	assert.True(t, s.Running())
	assert.False(t, s.Toggle())
	assert.False(t, s.Running())
}

func TestSchedulerSkipsExcludedApps(t *testing.T) {
	source := &fakeSource{
		app:   types.AppInfo{BundleID: "com.private.vault"},
		frame: []byte("x"),
	}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, []string{"com.private.vault"})

	s.Start()
	// The exclusion transition flushes once; no frames ever arrive.
	require.Eventually(t, func() bool { return processor.flushCount() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, processor.frameCount())
}

func TestSchedulerExclusionTransitionFlushesOnce(t *testing.T) {
	source := &fakeSource{
		app:   types.AppInfo{BundleID: "com.editor.app"},
		frame: []byte("x"),
	}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, []string{"com.private.vault"})

	s.Start()
	require.Eventually(t, func() bool { return processor.frameCount() >= 1 }, time.Second, 5*time.Millisecond)

	source.setApp(types.AppInfo{BundleID: "com.private.vault"})
	require.Eventually(t, func() bool { return processor.flushCount() >= 1 }, time.Second, 5*time.Millisecond)

	// Staying inside the excluded app does not flush again.
	before := processor.flushCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, before, processor.flushCount())
}

func TestSchedulerSetExclusionsLive(t *testing.T) {
	source := &fakeSource{app: types.AppInfo{BundleID: "com.editor.app"}, frame: []byte("x")}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, nil)

	s.Start()
	require.Eventually(t, func() bool { return processor.frameCount() >= 1 }, time.Second, 5*time.Millisecond)

	s.SetExclusions([]string{"COM.Editor.App"})
	require.Eventually(t, func() bool { return processor.flushCount() >= 1 }, time.Second, 5*time.Millisecond)

	count := processor.frameCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, processor.frameCount())
	assert.ElementsMatch(t, []string{"com.editor.app"}, s.Exclusions())
}

func TestSchedulerDropsOverdueTicks(t *testing.T) {
	source := &fakeSource{app: types.AppInfo{BundleID: "a"}, frame: []byte("x")}
	gate := make(chan struct{})
	processor := &fakeProcessor{gate: gate}
	s := NewScheduler(source, processor, 10*time.Millisecond, nil, logging.Nop(), nil)

	s.Start()
	// Hold the worker on the first frame while many ticks elapse. At most
	// one further frame can be queued; the rest are dropped.
	time.Sleep(100 * time.Millisecond)
	close(gate)
	s.Stop()

	assert.LessOrEqual(t, processor.frameCount(), 2)
}

func TestSchedulerSourceErrorSkipsTick(t *testing.T) {
	source := &fakeSource{appErr: errors.New("no screen")}
	processor := &fakeProcessor{}
	s := newTestScheduler(t, source, processor, nil)

	s.Start()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, processor.frameCount())
}
