package groups

import "context"

// Bus is the shared broadcast medium behind the registry. Publish must reach
// every process currently subscribed to the group, not just this one; a
// publish to a group nobody subscribes to is a silent no-op.
type Bus interface {
	Publish(ctx context.Context, group string, payload []byte) error
	Subscribe(group string) error
	Unsubscribe(group string) error
	// Run blocks, invoking deliver for every payload received on a subscribed
	// group, until Close.
	Run(deliver func(group string, payload []byte))
	Close() error
}
