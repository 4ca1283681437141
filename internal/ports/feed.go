package ports

import (
	"context"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// FeedHandlers receives push feed events. Callbacks run on the feed client's
// goroutines and must not block for long.
type FeedHandlers struct {
	OnConnect    func()
	OnDisconnect func(reason string)
	OnError      func(err error)
	OnBids       func(update domain.UpdatedBids)
	// OnServerError receives error messages the server pushes explicitly.
	OnServerError func(msg string)
}

// Feed is a push source of pool snapshots.
type Feed interface {
	// Run connects and keeps the feed alive until ctx ends, reconnecting on failure.
	Run(ctx context.Context, h FeedHandlers) error

	// Subscribe asks the server to stream the given contracts.
	Subscribe(contracts []string) error
}

func (h FeedHandlers) Connect() {
	if h.OnConnect != nil {
		h.OnConnect()
	}
}

func (h FeedHandlers) Disconnect(reason string) {
	if h.OnDisconnect != nil {
		h.OnDisconnect(reason)
	}
}

func (h FeedHandlers) Error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h FeedHandlers) Bids(u domain.UpdatedBids) {
	if h.OnBids != nil {
		h.OnBids(u)
	}
}

func (h FeedHandlers) ServerError(msg string) {
	if h.OnServerError != nil {
		h.OnServerError(msg)
	}
}
