package output

import (
	"context"
	"testing"

	"github.com/levietanh/gitstar-crawler/pkg/log"
)

type tLogger struct {
	t *testing.T
}

func testLogger(t *testing.T) log.Logger {
	return &tLogger{t: t}
}

func (l *tLogger) Info(ctx context.Context, format string, args ...interface{}) {
	l.t.Logf("[INFO] "+format, args...)
}

func (l *tLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	l.t.Logf("[WARN] "+format, args...)
}

func (l *tLogger) Error(ctx context.Context, format string, args ...interface{}) {
	l.t.Logf("[ERROR] "+format, args...)
}

func (l *tLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	l.t.Logf("[DEBUG] "+format, args...)
}
