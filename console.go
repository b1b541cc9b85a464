package facemark

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/esimov/facemark/utils"
)

// Console is a terminal Scaffold: a spinner runs while interaction is disabled
// and transient messages are printed once it stops.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	spinner  *utils.Spinner
	logger   *slog.Logger
	pending  []string
	thumb    image.Image
	decided  bool
	accepted bool
}

var _ Scaffold = (*Console)(nil)

// NewConsole returns a console scaffold writing to w. The spinner is optional.
func NewConsole(w io.Writer, spinner *utils.Spinner, logger *slog.Logger) *Console {
	if logger == nil {
		logger = discardLogger()
	}
	return &Console{w: w, spinner: spinner, logger: logger}
}

// SetInteractionEnabled starts the spinner while busy and flushes the pending messages when idle.
func (c *Console) SetInteractionEnabled(enabled bool) {
	if c.spinner != nil {
		if enabled {
			c.spinner.Stop()
		} else {
			c.spinner.Start()
		}
	}
	if enabled {
		c.flush()
	}
}

// ShowTransientMessage queues text until the spinner stops.
func (c *Console) ShowTransientMessage(text string) {
	c.mu.Lock()
	c.pending = append(c.pending, text)
	c.mu.Unlock()
}

func (c *Console) flush() {
	c.mu.Lock()
	msgs := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, msg := range msgs {
		fmt.Fprintf(c.w, "%s %s\n",
			utils.DecorateText("⚡ FACEMARK", utils.StatusMessage),
			utils.DecorateText("⇢ "+msg, utils.DefaultMessage),
		)
	}
}

// UpdateThumbnail keeps the annotated preview.
func (c *Console) UpdateThumbnail(img image.Image) {
	c.mu.Lock()
	c.thumb = img
	c.mu.Unlock()
	c.logger.Debug("preview updated", "size", img.Bounds().Size().String())
}

// Thumbnail returns the last annotated preview, if any.
func (c *Console) Thumbnail() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.thumb
}

// OnAccept records the commit.
func (c *Console) OnAccept() { c.decide(true) }

// OnDecline records the discard.
func (c *Console) OnDecline() { c.decide(false) }

func (c *Console) decide(accepted bool) {
	if c.spinner != nil {
		c.spinner.Stop()
	}
	c.flush()

	c.mu.Lock()
	c.decided, c.accepted = true, accepted
	c.mu.Unlock()
}

// Accepted reports whether the session ended with a commit.
func (c *Console) Accepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.decided && c.accepted
}
