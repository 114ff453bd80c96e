package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (stages, frame summary)
	LevelLive    = 2 // Live info (stage transitions, bytes captured)
	LevelVerbose = 3 // Verbose (register tables, pin assignments)
	LevelTrace   = 4 // Trace (GPIO, SCCB, very low level)
)

var (
	level  int
	out    io.Writer = os.Stderr
	logger           = zerolog.Nop()
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (stages, frame summary)
// 2 = live info (stage transitions, bytes captured)
// 3 = verbose (register tables, pin assignments)
// 4 = trace (GPIO, SCCB, very low level)
//
// Output goes to stderr: stdout is usually the frame sink.
func Init(debugLevel int) {
	level = debugLevel
	build()
}

// SetOutput redirects debug output. Used by tests.
func SetOutput(w io.Writer) {
	out = w
	build()
}

func build() {
	if level <= LevelOff {
		logger = zerolog.Nop()
		return
	}
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05.000",
		NoColor:    out != os.Stderr,
	}).Level(zerolog.TraceLevel).With().Timestamp().Str("app", "ovcap").Logger()
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Info().Msgf(format, args...)
	}
}

// Warn prints a level 1 warning.
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Warn().Msgf(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo {
		logger.Info().Msg("═══════════════════════════════════════")
		logger.Info().Msgf("  %s", title)
		logger.Info().Msg("═══════════════════════════════════════")
	}
}

// Frame prints the captured frame summary (level 1).
func Frame(mode string, width, height, allocated, captured int) {
	if level >= LevelInfo {
		logger.Info().
			Str("mode", mode).
			Int("width", width).
			Int("height", height).
			Int("allocated", allocated).
			Int("captured", captured).
			Msg("frame captured")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo {
		logger.Info().Interface("value", value).Msgf("  %s", name)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive {
		logger.Debug().Msgf(format, args...)
	}
}

// State prints a procedure state transition (level 2).
func State(from, to string) {
	if level >= LevelLive {
		logger.Debug().Str("from", from).Str("to", to).Msg("state")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf(format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose {
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debug().Msgf("  %s", name)
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose {
		logger.Debug().Int("step", num).Msg(description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace {
		logger.Trace().Msgf(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace {
		logger.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("gpio")
	}
}

// SCCB prints a camera register access (level 4).
func SCCB(operation string, reg, value byte) {
	if level >= LevelTrace {
		logger.Trace().
			Str("op", operation).
			Str("reg", fmt.Sprintf("0x%02X", reg)).
			Str("value", fmt.Sprintf("0x%02X", value)).
			Msg("sccb")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo {
		logger.Error().Err(err).Msg("")
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
