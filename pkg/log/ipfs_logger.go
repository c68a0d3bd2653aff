package log

import (
	ipfslog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

var _ Logger = &IPFSLogger{}

// IPFSLogger adapts a go-log subsystem logger. The CLI uses it so that the
// level of each subsystem ("rpc", "metadata", ...) can be tuned through the
// GOLOG_LOG_LEVEL environment variable.
type IPFSLogger struct {
	lg            *zap.SugaredLogger
	keysAndValues []any
	name          string
}

// SetupIPFSLogging configures the process-wide go-log backend.
func SetupIPFSLogging(level Level) {
	zapLevel, err := ipfslog.Parse(string(level))
	if err != nil {
		zapLevel = ipfslog.LevelInfo
	}
	ipfslog.SetupLogging(ipfslog.Config{
		Level:  zapLevel,
		Stderr: true,
	})
}

// NewIPFSLogger returns a Logger for the go-log subsystem name.
func NewIPFSLogger(name string) Logger {
	return &IPFSLogger{
		lg:   ipfslog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
		name: name,
	}
}

func (l *IPFSLogger) Debug(msg string, keysAndValues ...any) { l.lg.Debugw(msg, keysAndValues...) }
func (l *IPFSLogger) Info(msg string, keysAndValues ...any)  { l.lg.Infow(msg, keysAndValues...) }
func (l *IPFSLogger) Warn(msg string, keysAndValues ...any)  { l.lg.Warnw(msg, keysAndValues...) }
func (l *IPFSLogger) Error(msg string, keysAndValues ...any) { l.lg.Errorw(msg, keysAndValues...) }
func (l *IPFSLogger) Fatal(msg string, keysAndValues ...any) { l.lg.Fatalw(msg, keysAndValues...) }

func (l *IPFSLogger) WithKV(key string, value any) Logger {
	kv := make([]any, 0, len(l.keysAndValues)+2)
	kv = append(kv, l.keysAndValues...)
	return &IPFSLogger{
		lg:            l.lg.With(key, value),
		keysAndValues: append(kv, key, value),
		name:          l.name,
	}
}

func (l *IPFSLogger) GetAllKV() []any { return l.keysAndValues }

// WithName switches to the go-log subsystem "<name>.<child>" and carries the
// persistent pairs over.
func (l *IPFSLogger) WithName(name string) Logger {
	full := l.name + "." + name
	return &IPFSLogger{
		lg:            ipfslog.Logger(full).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().With(l.keysAndValues...),
		keysAndValues: l.keysAndValues,
		name:          full,
	}
}

func (l *IPFSLogger) Name() string { return l.name }

func (l *IPFSLogger) AddCallerSkip(skip int) Logger {
	return &IPFSLogger{
		lg:            l.lg.WithOptions(zap.AddCallerSkip(skip)),
		keysAndValues: l.keysAndValues,
		name:          l.name,
	}
}
