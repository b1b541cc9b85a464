package facemark

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testCascade builds a single stump pigo cascade which fires on windows whose
// center is brighter than the pixel above it. Uniform images never match.
func testCascade() []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 8))
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // depth
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // trees

	buf.Write([]byte{0, 0, 0x9c, 0}) // center vs. 100/256 of the window above
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(1.0))  // center brighter
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(-1.0)) // center darker or equal
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(0.0))  // threshold

	return buf.Bytes()
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	return dst
}

// cornersColored reports whether the four corners of r carry the color c.
func cornersColored(img *image.NRGBA, r Region, c color.NRGBA) bool {
	return img.NRGBAAt(r.X, r.Y) == c &&
		img.NRGBAAt(r.X+r.Width-1, r.Y) == c &&
		img.NRGBAAt(r.X, r.Y+r.Height-1) == c &&
		img.NRGBAAt(r.X+r.Width-1, r.Y+r.Height-1) == c
}

// fakeClassifier returns fixed rectangles.
type fakeClassifier struct {
	rects  []image.Rectangle
	err    error
	empty  bool
	calls  atomic.Int32
	closed atomic.Bool
	block  chan struct{}
}

func (f *fakeClassifier) DetectMultiScale(img *image.NRGBA) ([]image.Rectangle, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]image.Rectangle, len(f.rects))
	copy(out, f.rects)
	return out, nil
}

func (f *fakeClassifier) Empty() bool  { return f.empty || f.closed.Load() }
func (f *fakeClassifier) Close() error { f.closed.Store(true); return nil }

// fakeModel is a ModelSource yielding a fixed outcome.
type fakeModel struct {
	outcome LoadOutcome
	calls   atomic.Int32
}

func (m *fakeModel) LoadAsync(ctx context.Context, pool *Pool) <-chan LoadOutcome {
	m.calls.Add(1)
	ch := make(chan LoadOutcome, 1)
	ch <- m.outcome
	return ch
}

type scaffoldCalls struct {
	interaction []bool
	messages    []string
	thumbnails  []image.Image
	accepts     int
	declines    int
}

// recordingScaffold records the calls made by a session.
type recordingScaffold struct {
	mu          sync.Mutex
	interaction []bool
	messages    []string
	thumbnails  []image.Image
	accepts     int
	declines    int
}

func (r *recordingScaffold) SetInteractionEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interaction = append(r.interaction, enabled)
}

func (r *recordingScaffold) ShowTransientMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recordingScaffold) UpdateThumbnail(img image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thumbnails = append(r.thumbnails, img)
}

func (r *recordingScaffold) OnAccept() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepts++
}

func (r *recordingScaffold) OnDecline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declines++
}

func (r *recordingScaffold) snapshot() scaffoldCalls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return scaffoldCalls{
		interaction: append([]bool(nil), r.interaction...),
		messages:    append([]string(nil), r.messages...),
		thumbnails:  append([]image.Image(nil), r.thumbnails...),
		accepts:     r.accepts,
		declines:    r.declines,
	}
}

// waitForState waits up to timeout for the session to reach the expected state.
func waitForState(t *testing.T, s *Session, expected State, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == expected }, timeout, 5*time.Millisecond,
		"timeout waiting for state %v (got %v)", expected, s.State())
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
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
