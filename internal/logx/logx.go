package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service-wide logger. Everything downstream receives a child
// of this logger instead of touching a global.
func New(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
}
