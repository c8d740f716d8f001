package utils

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger
type LoggerOptions struct {
	Level      string
	Format     string // json, text
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogger builds a logrus logger writing to stdout and/or a rotating file
func NewLogger(opts LoggerOptions) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(opts.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var writers []io.Writer
	switch strings.ToLower(opts.Output) {
	case "file":
		writers = append(writers, rotatingFile(opts))
	case "both":
		writers = append(writers, os.Stdout, rotatingFile(opts))
	default:
		writers = append(writers, os.Stdout)
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger
}

func rotatingFile(opts LoggerOptions) io.Writer {
	return &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}
}

// DiscardLogger returns a logger that drops everything, used by tests
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
