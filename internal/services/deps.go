package services

import (
	"context"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/google/uuid"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventLogger records system log events. Implementations never fail.
type EventLogger interface {
	Log(ctx context.Context, event syslog.Event)
}

type noopTx struct{}

func (noopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopLogger struct{}

func (noopLogger) Log(context.Context, syslog.Event) {}

func actorID(actor session.Session) *uuid.UUID {
	if !actor.IsLoggedIn || actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}
