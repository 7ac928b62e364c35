package context

import (
	"context"
	"github.com/google/uuid"
	"github.com/pickme-go/traceable-context"
	"time"
)

var recordMeta = `rc_meta`

type RecordMeta struct {
	UUID      uuid.UUID
	Side      string
	Key       interface{}
	Source    string
	Timestamp time.Time
}

// WithRecord derives a traceable context carrying the meta of the record being
// joined.
func WithRecord(parent context.Context, meta *RecordMeta) context.Context {
	if meta.UUID == uuid.Nil {
		meta.UUID = uuid.New()
	}

	if parent == nil {
		parent = traceable_context.WithUUID(meta.UUID)
	}

	return traceable_context.WithValue(parent, &recordMeta, meta)
}

// Meta returns the record meta of ctx, or nil when ctx was not built by WithRecord.
func Meta(ctx context.Context) *RecordMeta {
	if meta, ok := ctx.Value(&recordMeta).(*RecordMeta); ok {
		return meta
	}

	return nil
}
