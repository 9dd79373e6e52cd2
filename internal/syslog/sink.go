// Package syslog records notable application actions in the system_logs
// table. Logging is best-effort: callers never see its failures.
package syslog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

const (
	defaultCapacity      = 1024
	defaultInsertTimeout = 2 * time.Second
	defaultDrainInterval = 10 * time.Second
)

// Event is one notable action.
type Event struct {
	Action      string
	Description string
	UserID      *uuid.UUID
	Metadata    map[string]any
}

// Store persists log rows.
type Store interface {
	Insert(ctx context.Context, entry types.SystemLog) (types.SystemLog, error)
	List(ctx context.Context, offset, limit int) ([]types.SystemLog, int, error)
}

// Sink appends events to the store. Events that fail to insert wait in a
// bounded FIFO and are retried by Run; when the FIFO is full the oldest event
// is dropped.
type Sink struct {
	store         Store
	logger        *slog.Logger
	capacity      int
	insertTimeout time.Duration
	now           func() time.Time

	mu    sync.Mutex
	queue []types.SystemLog
}

type Option func(*Sink)

func WithCapacity(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithInsertTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.insertTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSink(store Store, opts ...Option) *Sink {
	s := &Sink{
		store:         store,
		logger:        obs.Logger(),
		capacity:      defaultCapacity,
		insertTimeout: defaultInsertTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log records the event. It returns once the insert succeeds, fails, or
// times out; request cancellation does not abort it.
func (s *Sink) Log(ctx context.Context, event Event) {
	event.Action = strings.TrimSpace(event.Action)
	if event.Action == "" {
		s.logger.Warn("system log event without action dropped", "description", event.Description)
		return
	}
	entry := types.SystemLog{
		Action:      event.Action,
		Description: event.Description,
		UserID:      event.UserID,
		Metadata:    event.Metadata,
		CreatedAt:   s.now().UTC(),
	}

	err := s.insert(ctx, entry)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInvalid):
		s.reject(entry, err)
	default:
		s.logger.Warn("system log insert failed, queued for retry", "action", entry.Action, "error", err)
		s.enqueue(entry)
	}
}

// Run drains the fallback queue every interval until ctx is done, then makes
// one last attempt.
func (s *Sink) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultDrainInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.insertTimeout)
			if n := s.Flush(flushCtx); n > 0 {
				s.logger.Warn("system log events lost on shutdown", "count", n)
			}
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush retries queued events in order and returns how many remain. It stops
// at the first transient failure; events the store rejects outright are
// dropped so they do not hold back the rest.
func (s *Sink) Flush(ctx context.Context) int {
	for {
		entry, ok := s.peek()
		if !ok {
			return 0
		}
		err := s.insert(ctx, entry)
		if err != nil && !errors.Is(err, store.ErrInvalid) {
			return s.Pending()
		}
		s.pop()
		if err != nil {
			s.reject(entry, err)
		}
	}
}

// Pending is the fallback queue depth.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Page is one page of log rows.
type Page struct {
	Logs       []types.SystemLog `json:"logs"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// List returns a 1-based page of logs, newest first.
func (s *Sink) List(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	logs, total, err := s.store.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Logs:       logs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Sink) insert(ctx context.Context, entry types.SystemLog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.insertTimeout)
	defer cancel()
	_, err := s.store.Insert(ctx, entry)
	return err
}

func (s *Sink) reject(entry types.SystemLog, err error) {
	obs.SyslogDropped.WithLabelValues("rejected").Inc()
	s.logger.Warn("system log event rejected by store, dropped", "action", entry.Action, "error", err)
}

func (s *Sink) enqueue(entry types.SystemLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		obs.SyslogDropped.WithLabelValues("full").Inc()
	}
	s.queue = append(s.queue, entry)
	obs.SyslogFallbackDepth.Set(float64(len(s.queue)))
}

func (s *Sink) peek() (types.SystemLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return types.SystemLog{}, false
	}
	return s.queue[0], true
}

func (s *Sink) pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
	obs.SyslogFallbackDepth.Set(float64(len(s.queue)))
}
