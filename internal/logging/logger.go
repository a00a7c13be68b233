package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the bridge's constructors.
type Logger struct {
	*zap.Logger
}

// NewFor builds the bridge logger. The bridge runs as a desktop sidecar and
// the shell captures its stderr, so both modes write there: JSON in release
// builds, a colored console encoder in development.
//
// An unparseable level falls back to info instead of failing the boot; a
// typo in LOG_LEVEL must not silence the bridge.
func NewFor(level string, development bool) *Logger {
	var lvl zapcore.Level
	badLevel := false
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl, badLevel = zapcore.InfoLevel, true
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encoding := "json"
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Development:       development,
		Encoding:          encoding,
		EncoderConfig:     encCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !development,
	}

	logger, err := cfg.Build()
	if err != nil {
		return NewNop()
	}

	l := &Logger{Logger: logger}
	if badLevel {
		l.Warn("unknown log level, using info", zap.String("level", level))
	}
	return l
}

// NewNop returns a logger that discards everything. Tests use it to keep
// their output quiet.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger tagged with the component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}
