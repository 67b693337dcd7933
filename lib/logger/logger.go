// Package logger wraps go.uber.org/zap the way every teacher package
// expects: a package-level `var log, _ = logger.New("component")` exposing
// the sugared Infow/Errorw/Warn/Fatalln surface.
package logger

import (
	"go.uber.org/zap"
)

// Logger is the sugared logging surface used across the codebase.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a production zap logger tagged with the given component name,
// mirroring the teacher's lib/logger.New(name) constructor.
func New(component string) (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	sugar := base.Sugar().With("component", component)
	return &Logger{SugaredLogger: sugar}, nil
}

// Fatalln logs at fatal level and exits, mirroring the log.Fatalln(...)
// call sites scattered through the teacher's cmd/ entrypoints.
func (l *Logger) Fatalln(args ...interface{}) {
	l.SugaredLogger.Fatal(args...)
}
