/*
Package facemark detects faces in an image with a cascade classifier, outlines
them and lets the user commit or discard the annotated result.

An edit goes through a Session: the packaged cascade model is loaded in the
background, a preview pass runs over the thumbnail once the view is visible,
and accepting runs a full resolution pass whose result replaces the image in
the ImageStore. A missing or broken model never blocks the edit, detection
simply yields nothing.

The package provides a command line interface. To check the supported commands type:

	$ facemark --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"log"
		"github.com/esimov/facemark"
	)

	func main() {
		cfg := facemark.DefaultConfig()
		e, err := facemark.NewEngine(cfg, facemark.NewDirAssets("cascade"), facemark.NewPigoClassifier(cfg), nil)
		if err != nil {
			log.Fatal(err)
		}
		defer e.Close()

		store := facemark.NewMemStore(img, cfg.ThumbnailSize)
		console := facemark.NewConsole(os.Stderr, nil, nil)
		if err := facemark.RunSession(e.NewSession(store, console), false); err != nil {
			log.Fatal(err)
		}
		// store.FullImage() now holds the annotated image.
	}
*/
package facemark
