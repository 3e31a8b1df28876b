package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

func TestQueryLoggerWritesOnlyFailedAndSlow(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 100*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return `SELECT * FROM "slots"`, 3 }

	q.Trace(ctx, time.Now(), stmt, nil)
	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found queries should be silent, got %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "db.query.slow") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("syntax error"))
	out := buf.String()
	if !strings.Contains(out, "db.query.failed") || !strings.Contains(out, `"rows":3`) {
		t.Fatalf("expected failed query entry with rows, got %s", out)
	}
}

func TestNewQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if newQueryLogger(nil, time.Second) == nil {
		t.Fatal("expected a discard logger")
	}
}
