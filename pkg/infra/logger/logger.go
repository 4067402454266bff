package logger

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultLogDir = "logs"

// NewLogger builds the JSON logger for one server process. Entries go to
// <LOG_DIR>/<serverType>.log and are mirrored to stdout. LOG_LEVEL accepts any
// logrus level name.
func NewLogger(serverType string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})
	logger.SetLevel(levelFromEnv(logrus.InfoLevel))

	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = defaultLogDir
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.Fatalf("Failed to create logs directory: %v", err)
	}

	name := serverType
	if name != "admin" {
		name = "proxy"
	}
	asyncWriter, err := NewAsyncFileWriter(filepath.Join(dir, name+".log"), 32*1024, 4096)
	if err != nil {
		log.Fatalf("Failed to initialize async log writer: %v", err)
	}
	logger.SetOutput(asyncWriter)
	logger.AddHook(NewConsoleHook(os.Stdout, logger.GetLevel()))

	return logger
}

// NewConsoleLogger logs to stderr only; used by the operator CLI.
func NewConsoleLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(levelFromEnv(logrus.WarnLevel))
	return logger
}

func levelFromEnv(fallback logrus.Level) logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return fallback
	}
	return level
}
