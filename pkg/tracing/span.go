// Package tracing records nested timed spans through contexts and logs the
// finished tree through slog.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
)

type contextKey struct{}

// Span is one timed step. Children are appended by StartSpan calls made
// with a context carrying the span.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Err      error

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan opens a span under the one in ctx, or a new trace when ctx has
// none. The trace ID is the request ID when one is present.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else if id := logger.RequestID(ctx); id != "" {
		span.TraceID = id
	} else {
		span.TraceID = newTraceID()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End stamps the duration and the outcome. It returns err unchanged so a
// step can end with `return span.End(err)`.
func (s *Span) End(err error) error {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.Err = err
	s.mu.Unlock()
	return err
}

// SetAttr attaches a key/value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the tree depth first, one record per span.
func (s *Span) Log(l *slog.Logger) {
	s.log(l, 0)
}

func (s *Span) log(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration_ms", s.Duration.Milliseconds(),
	}
	attrs = append(attrs, s.attrs...)
	level := slog.LevelInfo
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
		level = slog.LevelWarn
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	l.Log(context.Background(), level, "span", attrs...)
	for _, child := range children {
		child.log(l, depth+1)
	}
}

func newTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
