package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// The TUI owns stdout, so the logger writes to a file under the cache dir.
func setupLogging(toStderr bool) func() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if toStderr {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	dir := filepath.Join(homeDir(), ".cache", "dontstarve")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "dstman.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(f)
	return func() { f.Close() }
}

func logf(format string, args ...any) {
	log.Printf(format, args...)
}
