// Package logging provides the engine's internal diagnostic logger. It is
// disabled by default and only turns on when TVMDBG_DEBUG is set, exactly
// like the teacher's service.serviceLog / ARM_EMULATOR_DEBUG switch: a debug
// log file kept open for the process lifetime, never the sink for the
// emulator's own `output` event stream.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// EnvVar is the environment variable that enables the debug log file.
const EnvVar = "TVMDBG_DEBUG"

var engineLog *log.Logger

func init() {
	engineLog = New()
}

// New builds a logger the same way the package-level default is built,
// honoring EnvVar. Exposed so tests and hosts needing an isolated instance
// don't have to touch the package-level logger.
func New() *log.Logger {
	if os.Getenv(EnvVar) == "" {
		return log.New(io.Discard, "", 0)
	}

	logPath := filepath.Join(os.TempDir(), "tvmdbg-engine-debug.log")
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 -- fixed filename in temp dir
	if err != nil {
		return log.New(os.Stderr, "ENGINE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
	}
	return log.New(f, "ENGINE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
}

// Default returns the package-level logger, built once at init time from
// the environment.
func Default() *log.Logger {
	return engineLog
}
