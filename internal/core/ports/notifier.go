package ports

import "context"

// Change event types mirrored from the record store.
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// Change is a single record-change notification: which table, what happened,
// and the record key affected.
type Change struct {
	Table string `json:"table"`
	Event string `json:"event"`
	Key   string `json:"key"`
}

// ChangePublisher emits change notifications after successful writes.
type ChangePublisher interface {
	Publish(ctx context.Context, change Change) error
}

// ChangeSubscriber delivers change notifications for a set of tables.
// The returned channel closes when ctx is cancelled or close is called;
// callers must always invoke close to release the subscription.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, tables ...string) (<-chan Change, func(), error)
}
