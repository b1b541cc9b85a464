package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"gioui.org/app"
	"github.com/esimov/facemark"
	"github.com/esimov/facemark/utils"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌┬┐┌─┐┬─┐┬┌─
├┤ ├─┤│  ├┤ │││├─┤├┬┘├┴┐
└  ┴ ┴└─┘└─┘┴ ┴┴ ┴┴└─┴ ┴

Face detection and annotation tool.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source")
	destination = flag.String("out", pipeName, "Destination")
	cascade     = flag.String("cc", "", "Cascade classifier")
	engine      = flag.String("engine", "pigo", "Detection engine: pigo or opencv")
	confPath    = flag.String("conf", "", "JSON configuration file")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")
	faceAngle   = flag.Float64("angle", -1, "Plane rotated faces angle")
	minSize     = flag.Int("min", 0, "Minimum face size")
	qThreshold  = flag.Float64("q", 5.0, "Minimum detection score")
	stroke      = flag.Int("stroke", 0, "Outline stroke width")
	strokeColor = flag.String("color", "", "Outline color")
	decline     = flag.Bool("decline", false, "Discard the edit instead of committing it")
	preview     = flag.Bool("preview", false, "Show the GUI preview")
	logLevel    = flag.String("log", "warn", "Log level: debug, info, warn, error")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(*cascade) == 0 {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nPlease specify a face classifier with the -cc flag!", utils.ErrorMessage))
	}

	cfg := facemark.DefaultConfig()
	if *confPath != "" {
		var err error
		if cfg, err = facemark.LoadConfig(*confPath); err != nil {
			log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
	}
	overrideConfig(cfg)

	logger := facemark.NewLogger(os.Stderr, *logLevel)

	var build facemark.ClassifierFunc
	switch *engine {
	case "pigo":
		build = facemark.NewPigoClassifier(cfg)
	case "opencv":
		build = facemark.NewOpenCVClassifier()
	default:
		log.Fatalf(utils.DecorateText("unknown detection engine %q", utils.ErrorMessage), *engine)
	}

	assets := facemark.NewDirAssets(filepath.Dir(*cascade))
	e, err := facemark.NewEngine(cfg, assets, build, logger)
	if err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	op := &facemark.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  *workers,
		Decline:  *decline,
	}

	if *preview {
		// The Gio event loop must own the main goroutine.
		go func() {
			err := op.Preview(e)
			e.Close()
			if err != nil {
				log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
			}
			os.Exit(0)
		}()
		app.Main()
		return
	}

	err = op.Execute(e)
	e.Close()
	if err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
}

// overrideConfig applies the command line flags which were set explicitly.
func overrideConfig(cfg *facemark.Config) {
	cfg.AssetID = filepath.Base(*cascade)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "angle":
			cfg.Angle = *faceAngle
		case "min":
			cfg.MinSize = *minSize
		case "q":
			cfg.QThreshold = *qThreshold
		case "stroke":
			cfg.StrokeWidth = *stroke
		case "color":
			cfg.StrokeColor = *strokeColor
		case "conc":
			cfg.Workers = *workers
		}
	})
}
