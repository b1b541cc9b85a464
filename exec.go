package facemark

import (
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/esimov/facemark/utils"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Supported files
var validExtensions = []string{".jpg", ".png", ".jpeg", ".bmp", ".gif"}

// Ops holds the options of a command line run.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
	// Decline discards the edit instead of committing it.
	Decline bool
	// Status receives the progress messages, os.Stderr when nil.
	Status io.Writer

	spinner *utils.Spinner
}

// result holds the relevant information about the detection process and the generated image.
type result struct {
	path     string
	accepted bool
	err      error
}

func (op *Ops) status() io.Writer {
	if op.Status == nil {
		return os.Stderr
	}
	return op.Status
}

// Execute runs a headless edit session over the source image, or over every
// supported image of the source directory, and writes the committed images.
func (op *Ops) Execute(e *Engine) error {
	defaultMsg := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACEMARK", utils.StatusMessage),
		utils.DecorateText("⇢ detecting faces...", utils.DefaultMessage),
	)
	op.spinner = utils.NewSpinner(defaultMsg, time.Millisecond*80, true)
	op.spinner.SetWriter(op.status())

	// Capture CTRL-C signal and restores back the cursor visibility.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		<-signalChan
		op.spinner.RestoreCursor()
		os.Exit(1)
	}()

	src, cleanup, err := op.resolveSource()
	if err != nil {
		return err
	}
	defer cleanup()

	var fs os.FileInfo
	if src == op.PipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(src)
	}
	if err != nil {
		return errors.Wrap(err, "failed to load the source image")
	}

	now := time.Now()

	switch mode := fs.Mode(); {
	case mode.IsDir():
		var wg sync.WaitGroup
		// Read destination file or directory.
		if _, err := os.Stat(op.Dst); err != nil {
			if err := os.MkdirAll(op.Dst, 0755); err != nil {
				return errors.Wrap(err, "unable to create the destination directory")
			}
		}

		workers := op.Workers
		if workers <= 0 || workers > maxWorkers {
			workers = e.Config.Workers
		}

		// Process recursively the image files from the specified directory concurrently.
		ch := make(chan result)
		done := make(chan interface{})
		defer close(done)

		paths, errc := walkDir(done, src, validExtensions)

		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				op.consumer(e, op.Dst, ch, done, paths)
			}()
		}

		// Close the channel after the values are consumed.
		go func() {
			defer close(ch)
			wg.Wait()
		}()

		// Consume the channel values.
		for res := range ch {
			if res.err != nil {
				err = res.err
			}
			op.printOpStatus(res)
		}

		if werr := <-errc; werr != nil {
			return werr
		}

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		ext := filepath.Ext(op.Dst)
		if !isValidExtension(ext, validExtensions) && op.Dst != op.PipeName {
			return errors.Errorf("%v file type not supported", ext)
		}

		accepted, perr := op.process(e, src, op.Dst)
		op.printOpStatus(result{path: op.Dst, accepted: accepted, err: perr})
		err = perr
	default:
		return errors.Errorf("unsupported source %s", src)
	}

	if err == nil {
		fmt.Fprintf(op.status(), "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	}
	return err
}

// resolveSource downloads remote sources into a temporary file.
func (op *Ops) resolveSource() (string, func(), error) {
	if !utils.IsValidUrl(op.Src) {
		return op.Src, func() {}, nil
	}
	f, err := utils.DownloadImage(op.Src)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to load the source image")
	}
	f.Close()

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// consumer reads the path names from the paths channel and runs an edit session over each image.
func (op *Ops) consumer(
	e *Engine,
	dest string,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for src := range paths {
		dst := filepath.Join(dest, filepath.Base(src))
		accepted, err := op.process(e, src, dst)

		select {
		case <-done:
			return
		case res <- result{
			path:     dst,
			accepted: accepted,
			err:      err,
		}:
		}
	}
}

// process decodes the source, drives an edit session over it and writes the
// committed image. Nothing is written when the edit is declined.
func (op *Ops) process(e *Engine, in, out string) (bool, error) {
	img, err := op.decodeSource(in)
	if err != nil {
		return false, err
	}

	store := NewMemStore(img, e.Config.ThumbnailSize)
	console := NewConsole(op.status(), op.spinner, e.Logger)

	if err := RunSession(e.NewSession(store, console), op.Decline); err != nil {
		return false, err
	}
	if !console.Accepted() {
		return false, nil
	}
	return true, op.encodeDest(out, store.FullImage())
}

// RunSession drives s the way a user would: it waits for the preview pass to
// settle, then accepts or declines, and returns once the session has ended.
func RunSession(s *Session, decline bool) error {
	idle := make(chan struct{}, 1)
	if err := s.OnTransition(func(prev, next State) {
		if next == StateIdle {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	}); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	if err := s.OnBecameVisible(); err != nil {
		return err
	}

	select {
	case <-idle:
	case <-s.Done():
		return ErrSessionClosed
	}

	var err error
	if decline {
		err = s.OnDeclineRequested()
	} else {
		err = s.OnAcceptRequested()
	}
	if err != nil {
		return err
	}
	<-s.Done()
	return nil
}

// decodeSource reads the image from a file or from stdin.
func (op *Ops) decodeSource(in string) (*image.NRGBA, error) {
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return Decode(os.Stdin)
	}
	return DecodeFile(in)
}

// encodeDest writes the image to a file or to stdout.
func (op *Ops) encodeDest(out string, img image.Image) error {
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return Encode(os.Stdout, img, "")
	}
	return EncodeFile(out, img)
}

// Preview opens a window showing the annotated thumbnail and writes the
// full resolution result when the user accepts. It blocks until the window
// is closed, so it has to run outside of the goroutine calling app.Main.
func (op *Ops) Preview(e *Engine) error {
	src, cleanup, err := op.resolveSource()
	if err != nil {
		return err
	}
	defer cleanup()

	img, err := op.decodeSource(src)
	if err != nil {
		return err
	}

	store := NewMemStore(img, e.Config.ThumbnailSize)
	gui := NewGUI(store.Thumbnail(), "Face detection preview")
	s := e.NewSession(store, gui)
	if err := s.Start(); err != nil {
		return err
	}
	if err := gui.Run(s); err != nil {
		return err
	}
	if !gui.Accepted() {
		op.printOpStatus(result{path: op.Dst})
		return nil
	}

	err = op.encodeDest(op.Dst, store.FullImage())
	op.printOpStatus(result{path: op.Dst, accepted: true, err: err})
	return err
}

// printOpStatus displays the relevant information about the detection process.
func (op *Ops) printOpStatus(res result) {
	switch {
	case res.err != nil:
		fmt.Fprintf(op.status(), "%s%s",
			utils.DecorateText(fmt.Sprintf("\nError processing the image %s", filepath.Base(res.path)), utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", res.err), utils.DefaultMessage),
		)
	case !res.accepted:
		fmt.Fprintf(op.status(), "\nThe edit of %s has been declined\n",
			utils.DecorateText(filepath.Base(res.path), utils.StatusMessage),
		)
	case res.path != op.PipeName:
		fmt.Fprintf(op.status(), "\nThe image has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(res.path), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}

			if isValidExtension(filepath.Ext(f.Name()), srcExts) {
				select {
				case <-done:
					return errors.New("directory walk cancelled")
				case pathChan <- path:
				}
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
