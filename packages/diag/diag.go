// Package diag holds the process-wide diagnostic logger.
//
// Logging is off until Enable is called; before that L returns a no-op
// logger so library code can log unconditionally.
package diag

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	enableOnce sync.Once
	current    atomic.Pointer[zap.Logger]
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	current.Store(zap.NewNop())
}

// Enable installs a console logger writing to stderr. Only the first call
// has an effect.
func Enable() {
	enableOnce.Do(func() {
		if v := os.Getenv("HTTPBRIDGE_LOG"); v != "" {
			if lvl, err := zapcore.ParseLevel(v); err == nil {
				level.SetLevel(lvl)
			}
		}

		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.NameKey = zapcore.OmitKey

		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		)
		current.Store(zap.New(core))
	})
}

// SetLevel changes the level of the installed logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// L returns the process logger.
func L() *zap.Logger {
	return current.Load()
}

// Named returns a child of the process logger scoped to a component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}
