package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalInitd bool
	initLock    sync.Mutex
)

func initLogger(logLevel string, replaceGlobal bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	encoder := zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		MessageKey:  "msg",
		NameKey:     "name",
		EncodeLevel: zapcore.LowercaseColorLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoder),
		zapcore.NewMultiWriteSyncer(writers...),
		level,
	)
	l := zap.New(core)
	if replaceGlobal {
		zap.ReplaceGlobals(l)
	}
	return l, nil
}

// NewLogger returns a console logger at logLevel without touching the global
// one.
func NewLogger(logLevel string) (*zap.Logger, error) {
	return initLogger(logLevel, false)
}

func MustNewLogger(logLevel string) *zap.Logger {
	l, err := NewLogger(logLevel)
	if err != nil {
		panic(err)
	}
	return l
}

// InitGlobalLogger replaces zap.L() and zap.S(). Only the first call has an
// effect.
func InitGlobalLogger(logLevel string) error {
	initLock.Lock()
	defer initLock.Unlock()
	if globalInitd {
		return nil
	}
	if _, err := initLogger(logLevel, true); err != nil {
		return err
	}
	globalInitd = true
	return nil
}
