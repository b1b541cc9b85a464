package facemark

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

type sessionFixture struct {
	session  *Session
	scaffold *recordingScaffold
	store    *MemStore
	original *image.NRGBA
	pool     *Pool
}

func newSessionFixture(t *testing.T, model ModelSource) *sessionFixture {
	t.Helper()
	full := solidImage(100, 100, black)
	f := &sessionFixture{
		scaffold: &recordingScaffold{},
		store:    NewMemStore(full, 256),
		original: cloneNRGBA(full),
		pool:     NewPool(2, testLogger),
	}
	f.session = NewSession(model, f.pool, f.store, f.scaffold, NewAnnotator(nil), testLogger)
	t.Cleanup(func() {
		f.session.Close()
		f.pool.Close()
	})
	return f
}

func loadedModel(c Classifier) *fakeModel {
	return &fakeModel{outcome: LoadOutcome{Classifier: c}}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatalf("session did not end, state %v", s.State())
	}
}

type transitionRecorder struct {
	mu  sync.Mutex
	seq []State
}

func (r *transitionRecorder) listener(prev, next State) {
	r.mu.Lock()
	r.seq = append(r.seq, next)
	r.mu.Unlock()
}

func TestSession_PreviewScenario(t *testing.T) {
	c := &fakeClassifier{rects: []image.Rectangle{image.Rect(10, 10, 50, 50)}}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateIdle, testTimeout)

	calls := f.scaffold.snapshot()
	assert.Equal(t, 1, f.session.RegionCount())
	assert.Equal(t, []string{"1 faces detected"}, calls.messages)
	require.Len(t, calls.thumbnails, 1)

	thumb := calls.thumbnails[0].(*image.NRGBA)
	assert.True(t, cornersColored(thumb, Region{X: 10, Y: 10, Width: 40, Height: 40}, white))
	assert.Equal(t, black, thumb.NRGBAAt(30, 30))

	// the displayed thumbnail is a copy, the store keeps the original
	assert.Equal(t, f.original.Pix, f.store.Thumbnail().Pix)
	assert.True(t, f.session.InteractionEnabled())
}

func TestSession_EngineWithPigoCascade(t *testing.T) {
	e := newTestEngine(t, NewPigoClassifier(nil))

	full := solidImage(100, 100, black)
	draw.Draw(full, image.Rect(10, 10, 50, 50), image.NewUniform(white), image.Point{}, draw.Src)
	original := cloneNRGBA(full)
	store := NewMemStore(full, e.Config.ThumbnailSize)
	scaffold := &recordingScaffold{}

	s := e.NewSession(store, scaffold)
	defer s.Close()

	require.NoError(t, s.Start())
	require.NoError(t, s.OnBecameVisible())
	waitForState(t, s, StateIdle, testTimeout)

	n := s.RegionCount()
	require.Positive(t, n)
	calls := scaffold.snapshot()
	assert.Equal(t, []string{fmt.Sprintf("%d faces detected", n)}, calls.messages)
	require.Len(t, calls.thumbnails, 1)
	assert.NotEqual(t, original.Pix, calls.thumbnails[0].(*image.NRGBA).Pix)

	require.NoError(t, s.OnAcceptRequested())
	waitDone(t, s)

	assert.Equal(t, 1, scaffold.snapshot().accepts)
	assert.NotEqual(t, original.Pix, store.FullImage().Pix)
	assert.Equal(t, original.Pix, full.Pix)
}

func TestSession_PreviewRunsOnce(t *testing.T) {
	c := &fakeClassifier{rects: []image.Rectangle{image.Rect(10, 10, 50, 50)}}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	for i := 0; i < 5; i++ {
		require.NoError(t, f.session.OnBecameVisible())
	}
	waitForState(t, f.session, StateIdle, testTimeout)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.session.OnBecameVisible())
	}
	time.Sleep(50 * time.Millisecond)

	assert.EqualValues(t, 1, c.calls.Load())
	assert.Len(t, f.scaffold.snapshot().thumbnails, 1)
	assert.Equal(t, StateIdle, f.session.State())
}

func TestSession_PreviewWaitsForVisibility(t *testing.T) {
	c := &fakeClassifier{}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	waitForState(t, f.session, StateReady, testTimeout)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, c.calls.Load())
	assert.True(t, f.session.InteractionEnabled())

	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateIdle, testTimeout)
	assert.EqualValues(t, 1, c.calls.Load())
	assert.Equal(t, []string{"0 faces detected"}, f.scaffold.snapshot().messages)
}

func TestSession_TransitionsAndInteraction(t *testing.T) {
	c := &fakeClassifier{rects: []image.Rectangle{image.Rect(10, 10, 50, 50)}}
	f := newSessionFixture(t, loadedModel(c))
	rec := &transitionRecorder{}

	require.NoError(t, f.session.OnTransition(rec.listener))
	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateIdle, testTimeout)
	require.NoError(t, f.session.OnAcceptRequested())
	waitDone(t, f.session)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []State{
		StateLoadingModel,
		StateReady,
		StateDetectingPreview,
		StateIdle,
		StateDetectingFull,
		StateClosed,
	}, rec.seq)
	assert.Equal(t, []bool{false, true, false, true, false}, f.scaffold.snapshot().interaction)
}

func TestSession_AcceptPublishesFullResult(t *testing.T) {
	c := &fakeClassifier{rects: []image.Rectangle{
		image.Rect(10, 10, 40, 40),
		image.Rect(55, 50, 90, 85),
	}}
	f := newSessionFixture(t, loadedModel(c))
	input := f.store.FullImage()

	require.NoError(t, f.session.Start())
	waitForState(t, f.session, StateReady, testTimeout)
	require.NoError(t, f.session.OnAcceptRequested())
	waitDone(t, f.session)

	calls := f.scaffold.snapshot()
	assert.Equal(t, 1, calls.accepts)
	assert.Equal(t, 0, calls.declines)
	assert.Equal(t, 2, f.session.RegionCount())

	full := f.store.FullImage()
	assert.NotSame(t, input, full)
	assert.True(t, cornersColored(full, Region{X: 10, Y: 10, Width: 30, Height: 30}, white))
	assert.True(t, cornersColored(full, Region{X: 55, Y: 50, Width: 35, Height: 35}, white))

	// Erasing both outlines gives back the original.
	restored := cloneNRGBA(full)
	for _, r := range []image.Rectangle{image.Rect(10, 10, 40, 40), image.Rect(55, 50, 90, 85)} {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				restored.SetNRGBA(x, y, black)
			}
		}
	}
	assert.Equal(t, f.original.Pix, restored.Pix)
	assert.Equal(t, f.original.Pix, input.Pix)
}

func TestSession_LoadFailureStillAccepts(t *testing.T) {
	f := newSessionFixture(t, &fakeModel{outcome: LoadOutcome{Err: ErrAssetUnavailable}})

	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateIdle, testTimeout)
	assert.True(t, f.session.InteractionEnabled())

	require.NoError(t, f.session.OnAcceptRequested())
	waitDone(t, f.session)

	calls := f.scaffold.snapshot()
	assert.Equal(t, 1, calls.accepts)
	assert.Empty(t, calls.messages)
	assert.Empty(t, calls.thumbnails)
	assert.Equal(t, f.original.Pix, f.store.FullImage().Pix)
}

func TestSession_LoadFailureStillDeclines(t *testing.T) {
	f := newSessionFixture(t, &fakeModel{outcome: LoadOutcome{Err: ErrClassifierInvalid}})

	require.NoError(t, f.session.Start())
	waitForState(t, f.session, StateReady, testTimeout)
	require.NoError(t, f.session.OnDeclineRequested())
	waitDone(t, f.session)

	calls := f.scaffold.snapshot()
	assert.Equal(t, 1, calls.declines)
	assert.Equal(t, 0, calls.accepts)
}

func TestSession_NilLoaderDegrades(t *testing.T) {
	f := newSessionFixture(t, nil)

	require.NoError(t, f.session.Start())
	waitForState(t, f.session, StateReady, testTimeout)
}

func TestSession_DeclineRunsNoDetection(t *testing.T) {
	c := &fakeClassifier{rects: []image.Rectangle{image.Rect(10, 10, 50, 50)}}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	waitForState(t, f.session, StateReady, testTimeout)
	require.NoError(t, f.session.OnDeclineRequested())
	waitDone(t, f.session)

	assert.EqualValues(t, 0, c.calls.Load())
	assert.Equal(t, 1, f.scaffold.snapshot().declines)
	assert.Equal(t, f.original.Pix, f.store.FullImage().Pix)
}

func TestSession_AcceptIgnoredWhileDetecting(t *testing.T) {
	c := &fakeClassifier{block: make(chan struct{})}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateDetectingPreview, testTimeout)
	assert.False(t, f.session.InteractionEnabled())

	require.NoError(t, f.session.OnAcceptRequested())
	close(c.block)
	waitForState(t, f.session, StateIdle, testTimeout)

	assert.Equal(t, 0, f.scaffold.snapshot().accepts)
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestSession_LateCompletionDropped(t *testing.T) {
	c := &fakeClassifier{
		rects: []image.Rectangle{image.Rect(10, 10, 50, 50)},
		block: make(chan struct{}),
	}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateDetectingPreview, testTimeout)

	require.NoError(t, f.session.Close())
	close(c.block)
	time.Sleep(50 * time.Millisecond)

	calls := f.scaffold.snapshot()
	assert.Equal(t, StateClosed, f.session.State())
	assert.Empty(t, calls.thumbnails)
	assert.Empty(t, calls.messages)
	assert.Equal(t, 0, calls.accepts+calls.declines)

	assert.ErrorIs(t, f.session.OnAcceptRequested(), ErrSessionClosed)
	assert.NoError(t, f.session.Close())
}

func TestSession_DeclineDuringPreview(t *testing.T) {
	c := &fakeClassifier{block: make(chan struct{})}
	f := newSessionFixture(t, loadedModel(c))

	require.NoError(t, f.session.Start())
	require.NoError(t, f.session.OnBecameVisible())
	waitForState(t, f.session, StateDetectingPreview, testTimeout)

	require.NoError(t, f.session.OnDeclineRequested())
	waitDone(t, f.session)
	close(c.block)

	calls := f.scaffold.snapshot()
	assert.Equal(t, 1, calls.declines)
	assert.Empty(t, calls.thumbnails)
}

func TestState_Interactive(t *testing.T) {
	assert.True(t, StateReady.Interactive())
	assert.True(t, StateIdle.Interactive())
	for _, s := range []State{StateUninitialized, StateLoadingModel, StateDetectingPreview, StateDetectingFull, StateClosed} {
		assert.False(t, s.Interactive(), s.String())
	}
	assert.Equal(t, "unknown", State(42).String())
}
