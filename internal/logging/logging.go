package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger: JSON-encoded, written both to stderr
// and to a size-rotated file under dir.
func New(dir string) (*zap.Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	fileCore := zapcore.NewCore(encoder,
		zapcore.AddSync(&lumberjack.Logger{
			Filename: filepath.Join(dir, "app.log"),
			MaxSize:  100, // MB
			MaxAge:   28,  // days
			Compress: true,
		}),
		zap.InfoLevel,
	)
	stderrCore := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.InfoLevel)

	return zap.New(zapcore.NewTee(fileCore, stderrCore)), nil
}
