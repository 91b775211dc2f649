package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent.
const LogLevelEnvVar = "ESSP_LOG_LEVEL"

// maxDump caps how many bytes a frame or raw dump renders.
const maxDump = 256

var current atomic.Pointer[zap.Logger]

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// Initialize installs a stderr logger at level. An empty level falls back to
// ESSP_LOG_LEVEL; if that is empty too, logging stays silent.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		SetLogger(zap.NewNop())
		return nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l)
	return nil
}

// encoderConfig keeps millisecond timestamps so that 200 ms poll cadence and
// retry gaps are readable in the output.
func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return ec
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", level)
}

// SetLogger replaces the global logger. nil restores the silent default.
// Tests use it to install an observer.
func SetLogger(l *zap.Logger) {
	current.Store(l)
}

// GetLogger returns the global logger, never nil.
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogConnection logs a monitor client joining or leaving.
func LogConnection(remoteAddr string, event string) {
	Info("Monitor client",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogFrame logs one SSP frame at debug level. direction is "tx" or "rx".
// The sequence byte and declared length are broken out when raw holds a
// full header.
func LogFrame(direction string, command fmt.Stringer, raw []byte) {
	l := GetLogger()
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}

	fields := []zap.Field{
		zap.String("direction", direction),
		zap.Stringer("command", command),
		zap.Int("length", len(raw)),
	}
	if len(raw) >= 3 {
		fields = append(fields,
			zap.Bool("seq", raw[1]&0x80 != 0),
			zap.Uint8("slave", raw[1]&0x7F),
			zap.Uint8("data_len", raw[2]))
	}
	fields = append(fields, zap.String("hex", hexDump(raw)))
	l.Debug("SSP frame", fields...)
}

// LogRawBytes logs bytes that could not be framed or decoded.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// hexDump renders bytes as space-separated upper-case pairs, the way SSP
// traces are usually written.
func hexDump(data []byte) string {
	n := min(len(data), maxDump)
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", data[i])
	}
	if len(data) > maxDump {
		b.WriteString(" ...")
	}
	return b.String()
}

func asciiDump(data []byte) string {
	out := make([]byte, min(len(data), maxDump))
	for i := range out {
		if c := data[i]; c >= 0x20 && c < 0x7F {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
