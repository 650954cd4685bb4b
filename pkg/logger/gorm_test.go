package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Log
	t.Cleanup(func() { Log = prev })

	var buf bytes.Buffer
	Log = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &buf
}

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return `SELECT * FROM "records"`, 1 }

	t.Run("not found is dropped", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(logger.Warn, time.Second)
		l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("errors are logged", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(logger.Warn, time.Second)
		l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
		assert.Contains(t, buf.String(), "SQL Error")
		assert.Contains(t, buf.String(), "connection reset")
	})

	t.Run("slow queries warn", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(logger.Warn, time.Millisecond)
		l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
		assert.Contains(t, buf.String(), "Slow SQL")
	})

	t.Run("silent mode", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(logger.Warn, time.Second).LogMode(logger.Silent)
		l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}
