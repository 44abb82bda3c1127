package storage

import (
	"context"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// Storage persists conversation progress and reports backend health.
type Storage interface {
	conversation.Store

	Ping(ctx context.Context) error
	Close() error
}
