package feed

// ws.go - push feed of collection bid ladders.
//
// The feed server is a socket.io v4 endpoint reached over the websocket
// transport. The client authenticates with {"token": apiKey}, emits
// "check-contracts" after every connect and listens for:
//
//	"bids"      pool snapshot for one contract  → OnBids
//	"ws_error"  message pushed by the server    → OnServerError
//
// Transport failures are retried by the socket.io manager with jittered
// backoff. A disconnect initiated by the server is not, so it is retried here.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second

	handshakeTimeout = 10 * time.Second

	eventBids      = "bids"
	eventWSError   = "ws_error"
	eventSubscribe = "check-contracts"

	serverDisconnect = "io server disconnect"
)

// ReconnectConfig bounds the delay between reconnection attempts.
type ReconnectConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultReconnectConfig returns the default reconnection configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// Client implements ports.Feed.
type Client struct {
	url       string
	token     string
	reconnect ReconnectConfig

	mu        sync.Mutex
	sock      *socket.Socket
	contracts []string
}

var _ ports.Feed = (*Client)(nil)

// NewClient creates a feed client for serverURL (http, https, ws or wss)
// authenticating with token. A path in serverURL selects the namespace.
func NewClient(serverURL, token string) (*Client, error) {
	u, err := validateServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		url:       u,
		token:     token,
		reconnect: DefaultReconnectConfig(),
	}, nil
}

// WithReconnectConfig sets the reconnection configuration.
func (c *Client) WithReconnectConfig(cfg ReconnectConfig) *Client {
	c.reconnect = cfg
	return c
}

// Subscribe sets the contracts the server should push. When connected the
// subscription is sent right away, otherwise on the next connect.
func (c *Client) Subscribe(contracts []string) error {
	c.mu.Lock()
	c.contracts = append([]string(nil), contracts...)
	sock := c.sock
	c.mu.Unlock()

	if sock == nil || !sock.Connected() {
		return nil
	}
	return subscribe(sock, contracts)
}

// Run connects and dispatches events to h until ctx is cancelled.
func (c *Client) Run(ctx context.Context, h ports.FeedHandlers) error {
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(socket.WebSocket))
	opts.SetAutoConnect(false)
	opts.SetForceNew(true)
	opts.SetTimeout(handshakeTimeout)
	opts.SetReconnectionDelay(float64(c.reconnect.InitialBackoff.Milliseconds()))
	opts.SetReconnectionDelayMax(float64(c.reconnect.MaxBackoff.Milliseconds()))
	opts.SetAuth(map[string]any{"token": c.token})

	sock, err := socket.Connect(c.url, opts)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	var closing atomic.Bool

	sock.On("connect", func(...any) {
		c.mu.Lock()
		c.sock = sock
		contracts := c.contracts
		c.mu.Unlock()

		h.Connect()
		if len(contracts) > 0 {
			if err := subscribe(sock, contracts); err != nil {
				slog.Warn("feed: subscribe failed", "err", err)
			}
		}
	})
	sock.On("connect_error", func(args ...any) {
		if closing.Load() {
			return
		}
		h.Error(fmt.Errorf("feed: connect: %w", argError(args)))
	})
	sock.On("disconnect", func(args ...any) {
		c.mu.Lock()
		c.sock = nil
		c.mu.Unlock()
		if closing.Load() {
			return
		}

		reason := argString(args)
		h.Disconnect(reason)
		if reason == serverDisconnect {
			time.AfterFunc(c.reconnect.InitialBackoff, func() {
				if !closing.Load() {
					sock.Connect()
				}
			})
		}
	})
	sock.On(eventBids, func(args ...any) {
		u, err := decodeEventBids(args)
		if err != nil {
			slog.Warn("feed: bad bids payload", "err", err)
			return
		}
		h.Bids(u)
	})
	sock.On(eventWSError, func(args ...any) {
		h.ServerError(argString(args))
	})

	sock.Connect()
	<-ctx.Done()

	closing.Store(true)
	sock.Disconnect()
	return nil
}

func subscribe(sock *socket.Socket, contracts []string) error {
	if err := sock.Emit(eventSubscribe, contracts); err != nil {
		return fmt.Errorf("feed: emit %s: %w", eventSubscribe, err)
	}
	return nil
}

func argString(args []any) string {
	if len(args) == 0 || args[0] == nil {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func argError(args []any) error {
	if len(args) > 0 {
		if err, ok := args[0].(error); ok && err != nil {
			return err
		}
	}
	if msg := argString(args); msg != "" {
		return errors.New(msg)
	}
	return errors.New("unknown error")
}

// decodeEventBids decodes the first event argument, already parsed into
// generic JSON values by the socket.io decoder.
func decodeEventBids(args []any) (domain.UpdatedBids, error) {
	if len(args) == 0 {
		return domain.UpdatedBids{}, errors.New("empty bids event")
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return domain.UpdatedBids{}, err
	}
	return decodeUpdatedBids(raw)
}

type wireBids struct {
	ContractAddress string           `json:"contractAddress"`
	Floor           *decimal.Decimal `json:"floor"`
	Bids            []struct {
		Price          decimal.Decimal `json:"price"`
		ExecutableSize float64         `json:"executableSize"`
		NumberBidders  int             `json:"numberBidders"`
	} `json:"bids"`
}

func decodeUpdatedBids(raw json.RawMessage) (domain.UpdatedBids, error) {
	var w wireBids
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.UpdatedBids{}, err
	}
	if w.ContractAddress == "" {
		return domain.UpdatedBids{}, errors.New("missing contractAddress")
	}

	u := domain.UpdatedBids{
		ContractAddress: domain.NormalizeAddress(w.ContractAddress),
		Bids:            make(domain.Ladder, 0, len(w.Bids)),
	}
	if w.Floor != nil {
		f, _ := w.Floor.Float64()
		u.Floor = &f
	}
	for _, b := range w.Bids {
		price, _ := b.Price.Float64()
		u.Bids = append(u.Bids, domain.Pool{
			Price:          price,
			ExecutableSize: b.ExecutableSize,
			NumberBidders:  b.NumberBidders,
		})
	}
	return u, nil
}

func validateServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("feed: invalid server url %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return "", fmt.Errorf("feed: unsupported scheme %q", u.Scheme)
	}
	return raw, nil
}
