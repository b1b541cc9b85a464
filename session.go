package facemark

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
)

type passKind int

const (
	passPreview passKind = iota
	passFull
)

func (k passKind) String() string {
	if k == passPreview {
		return "preview"
	}
	return "full"
}

// events
type (
	evtStart       struct{}
	evtVisible     struct{}
	evtAccept      struct{}
	evtDecline     struct{}
	evtClose       struct{}
	evtAddListener struct{ l StateListener }
	evtLoaded      struct{ outcome LoadOutcome }
	evtPassDone    struct {
		kind  passKind
		token uint64
		res   *Result
	}
)

// Session is the accept/decline state machine of a face detection edit.
// Every transition runs on a single session goroutine; blocking work is
// handed to the pool and its completion is posted back as an event.
type Session struct {
	loader   ModelSource
	pool     *Pool
	store    ImageStore
	scaffold Scaffold
	pipeline *Pipeline
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan any
	done   chan struct{}

	// owned by the session goroutine
	loaded         bool
	visible        bool
	previewStarted bool
	token          uint64
	listeners      []StateListener

	state       atomic.Int32
	interaction atomic.Bool
	regions     atomic.Int64
}

// NewSession constructs a session and starts its event loop. Call Start to
// begin loading the model.
func NewSession(loader ModelSource, pool *Pool, store ImageStore, scaffold Scaffold, annotator *Annotator, logger *slog.Logger) *Session {
	if logger == nil {
		logger = discardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		loader:   loader,
		pool:     pool,
		store:    store,
		scaffold: scaffold,
		pipeline: NewPipeline(annotator, logger),
		logger:   logger.With("component", "session"),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan any, 64),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateUninitialized))

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		ev := <-s.events
		s.handle(ev)
		if s.State() == StateClosed {
			return
		}
	}
}

func (s *Session) handle(ev any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session event panic", "event", fmt.Sprintf("%T", ev), "error", r, "stack", string(debug.Stack()))
		}
	}()

	switch e := ev.(type) {
	case evtAddListener:
		s.listeners = append(s.listeners, e.l)
	case evtStart:
		s.handleStart()
	case evtVisible:
		s.visible = true
		s.maybePreview()
	case evtLoaded:
		s.handleLoaded(e.outcome)
	case evtAccept:
		s.handleAccept()
	case evtDecline:
		s.finish(s.scaffold.OnDecline)
	case evtClose:
		s.finish(nil)
	case evtPassDone:
		s.handlePassDone(e)
	}
}

func (s *Session) handleStart() {
	if s.State() != StateUninitialized {
		return
	}
	s.transition(StateLoadingModel)
	s.interaction.Store(false)
	s.scaffold.SetInteractionEnabled(false)

	if s.loader == nil {
		s.handleLoaded(LoadOutcome{Err: ErrAssetUnavailable})
		return
	}
	go func() {
		ch := s.loader.LoadAsync(s.ctx, s.pool)
		select {
		case outcome := <-ch:
			s.post(evtLoaded{outcome: outcome})
		case <-s.done:
		}
	}()
}

func (s *Session) handleLoaded(outcome LoadOutcome) {
	if s.State() != StateLoadingModel {
		return
	}
	if outcome.Loaded() {
		s.pipeline = s.pipeline.With(outcome.Classifier)
	} else {
		// Detection degrades to a no-op, the edit itself stays usable.
		s.logger.Warn("face detector unavailable", "error", outcome.Err)
	}
	s.loaded = true
	s.transition(StateReady)
	s.setInteraction(true)
	s.maybePreview()
}

// maybePreview starts the preview pass once the model is settled and the
// view is visible. It runs at most once per session.
func (s *Session) maybePreview() {
	if s.previewStarted || !s.loaded || !s.visible || s.State() != StateReady {
		return
	}
	s.previewStarted = true
	s.setInteraction(false)
	s.transition(StateDetectingPreview)
	s.submitPass(passPreview, s.store.Thumbnail())
}

func (s *Session) handleAccept() {
	st := s.State()
	if !st.Interactive() {
		s.logger.Debug("accept ignored", "state", st.String())
		return
	}
	s.setInteraction(false)
	s.transition(StateDetectingFull)
	s.submitPass(passFull, s.store.FullImage())
}

// submitPass runs the pipeline over img in the background. The completion is
// tagged with a token, so results landing after a newer pass or after the
// session ended are dropped.
func (s *Session) submitPass(kind passKind, img *image.NRGBA) {
	s.token++
	token := s.token
	pipeline, ctx := s.pipeline, s.ctx

	job := func() {
		res := pipeline.Run(ctx, img)
		s.post(evtPassDone{kind: kind, token: token, res: res})
	}

	if s.pool == nil {
		go job()
		return
	}
	go func() {
		if err := s.pool.Submit(ctx, job); err != nil {
			s.logger.Warn("detection pass not scheduled", "pass", kind.String(), "error", err)
			s.post(evtPassDone{kind: kind, token: token})
		}
	}()
}

func (s *Session) handlePassDone(e evtPassDone) {
	if e.token != s.token {
		s.logger.Debug("stale detection result dropped", "pass", e.kind.String())
		return
	}

	switch e.kind {
	case passPreview:
		if s.State() != StateDetectingPreview {
			return
		}
		if e.res != nil {
			s.regions.Store(int64(e.res.Count()))
			s.scaffold.UpdateThumbnail(e.res.Image)
			s.scaffold.ShowTransientMessage(fmt.Sprintf("%d faces detected", e.res.Count()))
		}
		s.transition(StateIdle)
		s.setInteraction(true)
	case passFull:
		if s.State() != StateDetectingFull {
			return
		}
		if e.res != nil {
			s.regions.Store(int64(e.res.Count()))
			s.store.SetFullImage(e.res.Image)
		}
		s.finish(s.scaffold.OnAccept)
	}
}

// finish ends the session, invalidating every outstanding pass, then calls hook.
func (s *Session) finish(hook func()) {
	if s.State() == StateClosed {
		return
	}
	s.token++
	s.cancel()
	s.setInteraction(false)
	if hook != nil {
		hook()
	}
	s.transition(StateClosed)
}

func (s *Session) transition(next State) {
	prev := s.State()
	if prev == next {
		return
	}
	s.state.Store(int32(next))
	s.logger.Debug("session state transition", "from", prev.String(), "to", next.String())
	for _, l := range s.listeners {
		l(prev, next)
	}
}

func (s *Session) setInteraction(enabled bool) {
	if s.interaction.Swap(enabled) == enabled {
		return
	}
	s.scaffold.SetInteractionEnabled(enabled)
}

// post delivers ev to the session goroutine, or fails once the session has ended.
func (s *Session) post(ev any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Start begins loading the detection model.
func (s *Session) Start() error { return s.post(evtStart{}) }

// OnBecameVisible signals that the edit view is shown. Only the first call
// may trigger the preview pass.
func (s *Session) OnBecameVisible() error { return s.post(evtVisible{}) }

// OnAcceptRequested runs the full resolution pass, publishes its result
// to the image store and commits. Ignored unless interaction is enabled.
func (s *Session) OnAcceptRequested() error { return s.post(evtAccept{}) }

// OnDeclineRequested discards the edit without running any detection.
func (s *Session) OnDeclineRequested() error { return s.post(evtDecline{}) }

// OnTransition registers a listener for state transitions.
func (s *Session) OnTransition(l StateListener) error { return s.post(evtAddListener{l: l}) }

// Close tears the session down without calling the scaffold hooks and waits
// for the session goroutine to exit. In-flight results are discarded.
// It must not be called from a Scaffold method.
func (s *Session) Close() error {
	s.post(evtClose{})
	<-s.done
	return nil
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// InteractionEnabled reports whether accept and decline are currently enabled.
func (s *Session) InteractionEnabled() bool { return s.interaction.Load() }

// RegionCount returns the number of faces found by the latest completed pass.
func (s *Session) RegionCount() int { return int(s.regions.Load()) }
