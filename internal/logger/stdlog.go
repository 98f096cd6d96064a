package logger

import (
	"log"
	"strings"

	"github.com/rs/zerolog"
)

// StdLogger returns a standard library logger that forwards each line to
// logger at the given level. It is used as net/http's ErrorLog so TLS
// handshake and accept errors end up in the structured log.
func StdLogger(logger zerolog.Logger, level zerolog.Level) *log.Logger {
	return log.New(&levelWriter{logger: logger, level: level}, "", 0)
}

type levelWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func (lw *levelWriter) Write(p []byte) (int, error) {
	lw.logger.WithLevel(lw.level).Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
