package utils

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

const redacted = "[REDACTED]"

var (
	openAIKeyPattern   = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{16,}`)
	bearerTokenPattern = regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9\-._~+/]+=*`)
)

// Redactor scrubs configured secrets and token-like strings from log output.
type Redactor struct {
	secrets []string
}

func NewRedactor(secrets ...string) *Redactor {
	var kept []string
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return &Redactor{secrets: kept}
}

func (r *Redactor) Redact(value string) string {
	for _, s := range r.secrets {
		value = strings.ReplaceAll(value, s, redacted)
	}
	value = openAIKeyPattern.ReplaceAllString(value, "sk-"+redacted)
	value = bearerTokenPattern.ReplaceAllString(value, "${1}"+redacted)
	return value
}

func (r *Redactor) fields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = r.Redact(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, r.Redact(err.Error()))
			}
		}
		out[i] = f
	}
	return out
}

type redactingCore struct {
	zapcore.Core
	redactor *Redactor
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.redactor.fields(fields)), redactor: c.redactor}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.redactor.Redact(ent.Message)
	return c.Core.Write(ent, c.redactor.fields(fields))
}

// WithRedaction wraps a core so that messages and string fields are scrubbed.
func WithRedaction(core zapcore.Core, redactor *Redactor) zapcore.Core {
	return &redactingCore{Core: core, redactor: redactor}
}

// NewLogger builds the service logger: JSON in production, console in development,
// optionally teed into a rotated file.
func NewLogger(cfg config.LogConfig, environment string, secrets []string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if environment == config.EnvDevelopment {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}

	var fileCore zapcore.Core
	if cfg.File != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileCore = zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(writer),
			zapCfg.Level,
		)
	}

	redactor := NewRedactor(secrets...)
	return zapCfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if fileCore != nil {
			core = zapcore.NewTee(core, fileCore)
		}
		return WithRedaction(core, redactor)
	}))
}
