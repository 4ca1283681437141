package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/poolbid/internal/adapters/storage"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

// Console writes alerts and reports to a terminal.
type Console struct {
	out io.Writer
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to w (tests).
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify logs the alert. Used when no webhook is configured.
func (c *Console) Notify(_ context.Context, topic, message string) error {
	slog.Error("alert", "topic", topic, "msg", message)
	return nil
}

// PrintBids prints the persisted bids grouped by collection and wallet.
func (c *Console) PrintBids(bids []storage.BidRecord, now time.Time) {
	if len(bids) == 0 {
		fmt.Fprintf(c.out, "[%s] no bids stored\n", now.Format("15:04:05"))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Collection", "Wallet", "Price", "Expires", "Status")
	live := 0
	for _, b := range bids {
		name := b.Slug
		if name == "" {
			name = shortAddress(b.ContractAddress)
		}
		status := "live"
		if !b.ExpiresAt.After(now) {
			status = "expired"
		} else {
			live++
		}
		table.Append(
			name,
			shortAddress(b.Wallet),
			b.Price,
			b.ExpiresAt.Format("2006-01-02 15:04"),
			status,
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "%d bids, %d live\n", len(bids), live)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
