package ports

import "context"

// Notifier delivers operator alerts. Delivery failures never affect the
// bidding pipeline.
type Notifier interface {
	Notify(ctx context.Context, topic, message string) error
}
