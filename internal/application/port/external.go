package port

import (
	"context"

	"github.com/ForsunJay/TGTEST/internal/domain/entity"
)

// Messenger delivers prompts and status updates to users. The core hands
// it plain text plus an optional list of selectable options; rendering
// (keyboards, formatting) is the transport's concern.
type Messenger interface {
	SendMessage(ctx context.Context, userID int64, text string, options []string) error
}

// DocumentStore persists attached document blobs and returns an opaque
// reference the core stores on the request
type DocumentStore interface {
	Store(ctx context.Context, userID int64, filename string, blob []byte) (string, error)
}

// Exporter produces a tabular file from a filtered request sequence and
// returns the path of the written file
type Exporter interface {
	Export(ctx context.Context, requests []*entity.Request) (string, error)
}
