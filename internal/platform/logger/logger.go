package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info", "":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Logger es la interfaz que consumen servicios, adapters y middleware.
// Los campos van como mapa para no acoplar a los callers con zap.
type Logger interface {
	With(fields map[string]any) Logger

	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)

	Sync()
}

type Options struct {
	Level  Level
	Format Format
	App    string
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New arma un logger zap: json usa la config de producción, text la de desarrollo (consola).
func New(opts Options) (Logger, error) {
	var cfg zap.Config
	switch opts.Format {
	case FormatJSON:
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(opts.Level.zapLevel())
	cfg.OutputPaths = []string{"stdout"}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	sugar := z.Sugar()
	if app := strings.TrimSpace(opts.App); app != "" {
		sugar = sugar.With("app", app)
	}
	return &zapLogger{sugar: sugar}, nil
}

// Nop descarta todo. Útil en tests.
func Nop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zapLogger{sugar: l.sugar.With(toKVs(fields)...)}
}

func (l *zapLogger) Debug(msg string, fields map[string]any) { l.sugar.Debugw(msg, toKVs(fields)...) }
func (l *zapLogger) Info(msg string, fields map[string]any)  { l.sugar.Infow(msg, toKVs(fields)...) }
func (l *zapLogger) Warn(msg string, fields map[string]any)  { l.sugar.Warnw(msg, toKVs(fields)...) }
func (l *zapLogger) Error(msg string, fields map[string]any) { l.sugar.Errorw(msg, toKVs(fields)...) }

func (l *zapLogger) Sync() {
	_ = l.sugar.Sync()
}

func toKVs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if err, ok := v.(error); ok {
			out = append(out, k, err.Error())
			continue
		}
		out = append(out, k, v)
	}
	return out
}
