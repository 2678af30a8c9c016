package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init inicializa el logger global del proceso. Cada servicio lo etiqueta con su nombre
// para poder seguir un mismo evento a través de productor y consumidores.
func Init(service, level string) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json" // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	built, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		panic(err)
	}
	log = built
}

// Logger retorna el logger estructurado
func Logger() *zap.Logger {
	return log
}
