// Package mirrorlog builds the structured logger threaded through
// every retrieval component. The teacher logs ad hoc with
// fmt.Printf/log.Fatalf in its cmd/ binaries; this repo follows the
// rest of the pack (go.uber.org/zap, used directly by
// Andrew50-peripheral) instead, since a retrieval engine with
// concurrent workers and a documented error taxonomy benefits from
// leveled, structured fields far more than an analytics CLI does.
package mirrorlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's verbosity and sink.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Empty means
	// "info".
	Level string
	// Path, if non-empty, redirects output to a file instead of
	// stderr.
	Path string
}

// New builds a *zap.SugaredLogger per cfg. A non-TTY destination (a
// log file, or stderr when redirected) gets the JSON encoder; stderr
// on a TTY gets the console encoder, matching zap's own recommended
// split between human and machine consumers.
func New(cfg Config) (*zap.SugaredLogger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var ws zapcore.WriteSyncer
	var encoder zapcore.Encoder
	cleanup := func() {}

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		ws = zapcore.AddSync(f)
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cleanup = func() { f.Close() }
	} else {
		ws = zapcore.AddSync(os.Stderr)
		if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			encCfg := zap.NewDevelopmentEncoderConfig()
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoder = zapcore.NewConsoleEncoder(encCfg)
		} else {
			encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}
	}

	core := zapcore.NewCore(encoder, ws, level)
	logger := zap.New(core)
	return logger.Sugar(), func() { cleanup(); _ = logger.Sync() }, nil
}

// Nop returns a logger that discards everything, for tests and
// library callers that don't want output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
