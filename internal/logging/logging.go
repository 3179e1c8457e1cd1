// Package logging builds the zerolog logger used across cadence and adapts it
// to the pacer's warning and failure hooks.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/pacer"
)

// New returns a logger writing to w. Console output is human readable with
// millisecond timestamps; json output emits one object per line.
func New(w io.Writer, level string, format config.LogFormat) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch format {
	case config.LogFormatJSON:
		out = w
	case config.LogFormatConsole, "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.StampMilli, NoColor: true}
	default:
		return zerolog.Nop(), fmt.Errorf("unsupported log format %q", format)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", level, err)
	}
	return lvl, nil
}

// Sink forwards pacer overrun warnings to a logger at warn level.
type Sink struct {
	Logger zerolog.Logger
}

var _ pacer.WarningSink = Sink{}

func (s Sink) Warn(message string) {
	s.Logger.Warn().Msg(message)
}

// FailureLogger logs every unsuccessful request of an iteration.
type FailureLogger struct {
	logger zerolog.Logger
}

func NewFailureLogger(logger zerolog.Logger) *FailureLogger {
	return &FailureLogger{logger: logger}
}

// LogIteration writes one entry per failed outcome. Transport failures are
// logged at error level, unexpected status codes at warn.
func (f *FailureLogger) LogIteration(vu, iteration int, res pacer.IterationResult) {
	if f == nil {
		return
	}
	for _, o := range res.Outcomes {
		if o.Succeeded {
			continue
		}
		var ev *zerolog.Event
		if o.StatusCode == pacer.StatusTransportFailure {
			ev = f.logger.Error().Err(o.Err)
		} else {
			ev = f.logger.Warn().Int("status", o.StatusCode)
		}
		ev.Int("vu", vu).
			Int("iteration", iteration).
			Int("index", o.Index).
			Float64("elapsed_ms", o.ElapsedMillis()).
			Msg("request failed")
	}
}
