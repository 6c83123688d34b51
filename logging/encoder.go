package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CusTimeEncoder creates a time encoder that adds the prefix and formats the time.
func CusTimeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(config.Prefix + t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     CusTimeEncoder(config),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if config.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// exactLevel enables only the given level.
func exactLevel(level zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level
	}
}

// getZapCores builds one terminal core for every level at or above
// config.Level, plus one file core per level when a Director is set.
func getZapCores(config Config) []zapcore.Core {
	encoder := GetEncoder(config)
	minLevel := config.TransportLevel()
	cores := make([]zapcore.Core, 0, 8)

	if ws := terminalSyncer(config.Output); ws != nil {
		cores = append(cores, zapcore.NewCore(encoder, ws, minLevel))
	}

	if config.Director != "" {
		for level := minLevel; level <= zapcore.FatalLevel; level++ {
			writer := newLevelWriter(config, level.String())
			registerWriter(writer)
			cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(writer), exactLevel(level)))
		}
	}

	return cores
}
