package progress

import "context"

// Sink consumes batches of progress events. Consume is only ever called from
// the hub goroutine, but implementations may also be read concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it.
type Emitter interface {
	Emit(evt Event)
}
