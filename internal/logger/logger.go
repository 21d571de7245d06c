package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var log *zap.Logger = zap.NewNop()

// Init builds the process logger. Pass debug=true for development
// output with human timestamps.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	log = l
	return nil
}

func Sync() {
	_ = log.Sync()
}

func Info(format string, args ...interface{}) {
	log.Info(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	log.Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	log.Fatal(fmt.Sprintf(format, args...))
}
