package bidder

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/poolbid/internal/application/failsafe"
	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

// RunConfig tunes the runner.
type RunConfig struct {
	NoFeed       bool          // run on the poller only
	PollInterval time.Duration // failsafe poll interval
}

// Runner drives the pipeline: feed pushes go to the updater, and when the
// feed is unhealthy the failsafe poller takes over.
type Runner struct {
	engine  *Engine
	updater *Updater
	poller  *Poller
	feed    ports.Feed
	cfg     RunConfig

	failsafe *failsafe.Controller
}

// NewRunner wires a runner. feed may be nil when cfg.NoFeed is set.
func NewRunner(engine *Engine, updater *Updater, poller *Poller, feed ports.Feed, cfg RunConfig) *Runner {
	return &Runner{engine: engine, updater: updater, poller: poller, feed: feed, cfg: cfg}
}

// Run syncs every collection once, then processes updates until ctx is
// cancelled. It returns after in-flight passes and alerts are done.
func (r *Runner) Run(ctx context.Context) error {
	fs := failsafe.New(ctx, r.poller.PollOnce, r.cfg.PollInterval)
	fs.Subscribe(r.engine.metrics.SetFailsafe)
	r.failsafe = fs

	defer func() {
		fs.Wait()
		r.updater.Wait()
		r.engine.WaitAlerts()
		slog.Info("bidder: stopped")
	}()

	slog.Info("bidder: initial sync", "collections", len(r.updater.Collections()), "wallets", len(r.engine.wallets))
	r.poller.PollOnce(ctx)

	if r.cfg.NoFeed || r.feed == nil {
		fs.Raise(failsafe.ReasonNoFeed, "", true)
		<-ctx.Done()
		return nil
	}

	contracts := make([]string, 0, len(r.updater.collections))
	for addr := range r.updater.collections {
		contracts = append(contracts, addr)
	}
	if err := r.feed.Subscribe(contracts); err != nil {
		slog.Warn("bidder: feed subscribe failed", "err", err)
	}

	return r.feed.Run(ctx, r.feedHandlers(ctx))
}

func (r *Runner) feedHandlers(ctx context.Context) ports.FeedHandlers {
	m := r.engine.metrics
	return ports.FeedHandlers{
		OnConnect: func() {
			m.FeedEvent("connect")
			slog.Info("bidder: connected to feed")
			r.failsafe.Clear(failsafe.ReasonFeedDown)
		},
		OnError: func(err error) {
			m.FeedEvent("error")
			r.failsafe.Raise(failsafe.ReasonFeedDown, "WS connect error: "+err.Error(), false)
		},
		OnDisconnect: func(reason string) {
			m.FeedEvent("disconnect")
			r.failsafe.Raise(failsafe.ReasonFeedDown, "WS disconnected: "+reason, false)
		},
		OnBids: func(u domain.UpdatedBids) {
			m.FeedEvent("bids")
			if r.failsafe.Active() {
				return
			}
			r.updater.Admit(ctx, u)
		},
		OnServerError: func(msg string) {
			m.FeedEvent("server_error")
			slog.Error("bidder: feed server error", "msg", msg)
			r.engine.alert("ws", msg)
		},
	}
}

// FailsafeActive reports whether the poller currently owns the pipeline.
func (r *Runner) FailsafeActive() bool {
	return r.failsafe != nil && r.failsafe.Active()
}
