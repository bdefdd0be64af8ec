// Package logging configures the process-wide klog sink: a zap console
// encoder in dev mode for interactive cmd/ runs, or a zap encoder writing
// through a lumberjack rotated file in long-running service mode.
package logging

import (
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"k8s.io/klog/v2"
)

// FileSink describes the rotated log file a service-mode process writes to.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitDevMode routes klog output through a zap development logger, matching
// the console-oriented setup used for interactive CLI runs.
func InitDevMode() {
	zapLog, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	klog.SetLogger(zapr.NewLogger(zapLog))
}

// InitServiceMode routes klog output through a zap production encoder
// backed by a rotating lumberjack file sink, for long-running service mode.
func InitServiceMode(sink FileSink) {
	fileWriter := &lumberjack.Logger{
		Filename:   sink.Path,
		MaxSize:    orDefault(sink.MaxSizeMB, 100),
		MaxBackups: orDefault(sink.MaxBackups, 5),
		MaxAge:     orDefault(sink.MaxAgeDays, 28),
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(fileWriter),
		zapcore.InfoLevel,
	)
	zapLog := zap.New(core)
	klog.SetLogger(zapr.NewLogger(zapLog))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
