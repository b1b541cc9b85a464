package facemark

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

const (
	maxScreenX = 1366
	maxScreenY = 768

	// messageTimeout is how long a transient message stays on screen.
	messageTimeout = 3 * time.Second
)

var (
	defaultBkgColor = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	messageBkgColor = color.NRGBA{R: 15, G: 139, B: 141, A: 0xff}
)

var _ Scaffold = (*Gui)(nil)

// Gui is a Gio window showing the preview thumbnail with accept and decline buttons.
// It implements Scaffold, so the session drives its affordances.
type Gui struct {
	cfg struct {
		window struct {
			w     float64
			h     float64
			title string
		}
	}

	mu    sync.Mutex
	state struct {
		img         image.Image
		message     string
		messageAt   time.Time
		interactive bool
		decided     bool
		accepted    bool
	}

	win     *app.Window
	theme   *material.Theme
	accept  widget.Clickable
	decline widget.Clickable
}

// NewGUI initializes the Gio interface around the image to be edited.
func NewGUI(img image.Image, title string) *Gui {
	g := &Gui{theme: material.NewTheme(gofont.Collection())}
	b := img.Bounds()
	g.cfg.window.w, g.cfg.window.h = getWindowSize(float64(b.Dx()), float64(b.Dy()))
	g.cfg.window.title = title
	g.state.img = img

	g.win = app.NewWindow(
		app.Title(g.cfg.window.title),
		app.Size(unit.Dp(float32(g.cfg.window.w)), unit.Dp(float32(g.cfg.window.h)+64)),
	)
	return g
}

// getWindowSize returns the window size retaining the image aspect ratio
// in case the image is larger than the predefined screen.
func getWindowSize(w, h float64) (float64, float64) {
	if w > maxScreenX || h > maxScreenY {
		ratio := math.Min(maxScreenX/w, maxScreenY/h)
		w, h = w*ratio, h*ratio
	}
	return w, h
}

// SetInteractionEnabled toggles the accept and decline buttons.
func (g *Gui) SetInteractionEnabled(enabled bool) {
	g.mu.Lock()
	g.state.interactive = enabled
	g.mu.Unlock()
	g.win.Invalidate()
}

// ShowTransientMessage shows text over the preview for a few seconds.
func (g *Gui) ShowTransientMessage(text string) {
	g.mu.Lock()
	g.state.message = text
	g.state.messageAt = time.Now()
	g.mu.Unlock()
	g.win.Invalidate()
}

// UpdateThumbnail replaces the displayed image.
func (g *Gui) UpdateThumbnail(img image.Image) {
	g.mu.Lock()
	g.state.img = img
	g.mu.Unlock()
	g.win.Invalidate()
}

// OnAccept records the commit. The window closes once the session ends.
func (g *Gui) OnAccept() { g.decide(true) }

// OnDecline records the discard. The window closes once the session ends.
func (g *Gui) OnDecline() { g.decide(false) }

func (g *Gui) decide(accepted bool) {
	g.mu.Lock()
	g.state.decided, g.state.accepted = true, accepted
	g.mu.Unlock()
	g.win.Invalidate()
}

// Accepted reports whether the user committed the edit.
func (g *Gui) Accepted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state.decided && g.state.accepted
}

// Run is the core method of the Gio GUI application. It translates the window
// events into session calls and returns when the window is destroyed.
func (g *Gui) Run(s *Session) error {
	var (
		ops     op.Ops
		visible bool
		done    = s.Done()
	)

	for {
		select {
		case e := <-g.win.Events():
			switch e := e.(type) {
			case system.FrameEvent:
				if !visible {
					visible = true
					s.OnBecameVisible()
				}
				gtx := layout.NewContext(&ops, e)
				if g.accept.Clicked() {
					s.OnAcceptRequested()
				}
				if g.decline.Clicked() {
					s.OnDeclineRequested()
				}
				if g.escapePressed(gtx) {
					s.OnDeclineRequested()
				}
				g.draw(gtx)
				e.Frame(gtx.Ops)
			case system.DestroyEvent:
				s.Close()
				return e.Err
			}
		case <-done:
			done = nil
			g.win.Perform(system.ActionClose)
		}
	}
}

// escapePressed drains the key events delivered to the window handler.
func (g *Gui) escapePressed(gtx C) bool {
	var pressed bool
	for _, ev := range gtx.Events(g) {
		if e, ok := ev.(key.Event); ok && e.Name == key.NameEscape && e.State == key.Press {
			pressed = true
		}
	}
	return pressed
}

// draw lays out the image, the transient message and the button row.
func (g *Gui) draw(gtx C) {
	g.mu.Lock()
	img := g.state.img
	msg := g.state.message
	msgAt := g.state.messageAt
	interactive := g.state.interactive
	g.mu.Unlock()

	paint.Fill(gtx.Ops, defaultBkgColor)

	// Escape declines the edit.
	key.InputOp{Tag: g, Keys: key.NameEscape}.Add(gtx.Ops)

	showMsg := msg != "" && time.Since(msgAt) < messageTimeout
	if showMsg {
		op.InvalidateOp{At: msgAt.Add(messageTimeout)}.Add(gtx.Ops)
	}

	layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Flexed(1, func(gtx C) D {
			if img == nil {
				return D{Size: gtx.Constraints.Max}
			}
			src := paint.NewImageOp(img)
			return widget.Image{Src: src, Fit: widget.Contain}.Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			if !showMsg {
				return D{}
			}
			return g.message(gtx, msg)
		}),
		layout.Rigid(func(gtx C) D {
			if !interactive {
				gtx = gtx.Disabled()
			}
			return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx C) D {
				return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceStart}.Layout(gtx,
					layout.Rigid(material.Button(g.theme, &g.decline, "Decline").Layout),
					layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
					layout.Rigid(material.Button(g.theme, &g.accept, "Accept").Layout),
				)
			})
		}),
	)
}

// message renders a text banner across the window width.
func (g *Gui) message(gtx C, msg string) D {
	return layout.Stack{}.Layout(gtx,
		layout.Expanded(func(gtx C) D {
			paint.FillShape(gtx.Ops, messageBkgColor, clip.Rect{Max: gtx.Constraints.Min}.Op())
			return D{Size: gtx.Constraints.Min}
		}),
		layout.Stacked(func(gtx C) D {
			gtx.Constraints.Min.X = gtx.Constraints.Max.X
			return layout.UniformInset(unit.Dp(6)).Layout(gtx, func(gtx C) D {
				lbl := material.Body1(g.theme, msg)
				lbl.Color = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
				return layout.Center.Layout(gtx, lbl.Layout)
			})
		}),
	)
}
