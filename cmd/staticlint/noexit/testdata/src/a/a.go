package main

import (
	"log"
	"os"
	stdlog "log"
)

func helper() {
	os.Exit(2)
}

func main() {
	defer helper()

	if len(os.Args) > 3 {
		os.Exit(1) // want "avoid calling os.Exit in main.main"
	}
	if len(os.Args) > 2 {
		log.Fatal("boom") // want "avoid calling log.Fatal in main.main"
	}
	if len(os.Args) > 1 {
		stdlog.Fatalf("boom %d", 1) // want "avoid calling log.Fatalf in main.main"
	}

	logger := log.New(os.Stderr, "", 0)
	logger.Println("methods are fine")

	func() {
		os.Exit(0) // want "avoid calling os.Exit in main.main"
	}()
}
