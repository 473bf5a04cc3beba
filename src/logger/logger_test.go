package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestLogger(level gormlogger.LogLevel) (*LogrusLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)

	return NewLogrusLogger(l, level), &buf
}

func TestLogrusLoggerTrace(t *testing.T) {
	query := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("errors are logged", func(t *testing.T) {
		l, buf := newTestLogger(gormlogger.Error)
		l.Trace(context.Background(), time.Now(), query, errors.New("boom"))

		assert.Contains(t, buf.String(), "boom")
		assert.Contains(t, buf.String(), "SELECT 1")
	})

	t.Run("record not found is skipped", func(t *testing.T) {
		l, buf := newTestLogger(gormlogger.Info)
		l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)

		assert.NotContains(t, buf.String(), "record not found")
	})

	t.Run("slow queries warn", func(t *testing.T) {
		l, buf := newTestLogger(gormlogger.Warn)
		l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		assert.Contains(t, buf.String(), "SLOW SQL")
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		l, buf := newTestLogger(gormlogger.Warn)
		l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), query, errors.New("boom"))

		assert.Empty(t, buf.String())
	})
}
