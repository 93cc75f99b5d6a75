// Command rango serves the Rango directory.
//
// Usage:
//
//	rango [flags] [serve|populate]
//
// serve, the default, runs the web site (and the gRPC directory when
// -g is set). populate seeds the configured storage with sample
// categories and pages.
package main

import (
	"github.com/patric-chuzhbe/rango/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		panic(err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		panic(err)
	}
}
