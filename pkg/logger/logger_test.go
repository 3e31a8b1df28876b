package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithParkID(ctx, "park-9")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"park_id\":\"park-9\"")) {
		t.Fatalf("expected park_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected no stack when warn stack disabled")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info and debug should be filtered at warn level; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}

func TestLoggerInstanceAndSortedFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Instance: "web.1", Output: buf})
	ctx := log.WithFields(context.Background(), map[string]any{"b": 2, "a": 1})
	log.Info(ctx, "hello")

	out := buf.String()
	if !strings.Contains(out, `"instance":"web.1"`) {
		t.Fatalf("expected instance field; entry=%s", out)
	}
	if strings.Index(out, `"a":1`) > strings.Index(out, `"b":2`) {
		t.Fatalf("expected sorted fields; entry=%s", out)
	}
}


func TestNewWhileAnotherLoggerWrites(t *testing.T) {
	writer := New(Options{ServiceName: "writer", Output: io.Discard})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			writer.Info(context.Background(), "tick")
		}
	}()
	for i := 0; i < 200; i++ {
		_ = New(Options{ServiceName: "builder", Output: io.Discard})
	}
	wg.Wait()

	buf := &bytes.Buffer{}
	New(Options{ServiceName: "ts", Output: buf}).Info(context.Background(), "stamp")
	var entry struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, entry.Time); err != nil {
		t.Fatalf("expected RFC3339Nano timestamp, got %q", entry.Time)
	}
}
