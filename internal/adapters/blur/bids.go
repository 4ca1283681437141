package blur

// bids.go - collection bid operations.
//
// Submitting is a two step exchange per tranche: the marketplace formats an
// EIP-712 order (/collection-bids/format), the wallet signs it and the
// signature is posted back (/collection-bids/submit).

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

const bidUnit = "BETH"

// FetchTopPools returns the first limit price levels of the collection.
func (c *Client) FetchTopPools(ctx context.Context, contract string, wallet *domain.Wallet, limit int) (domain.Ladder, error) {
	var resp priceLevelsResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/collections/" + contract + "/executable-bids",
		query:  url.Values{"filters": {"{}"}},
		wallet: wallet,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("blur.FetchTopPools %s: %w", contract, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("blur.FetchTopPools %s: failed to load collection bids", contract)
	}

	levels := resp.PriceLevels
	if limit > 0 && len(levels) > limit {
		levels = levels[:limit]
	}

	ladder := make(domain.Ladder, 0, len(levels))
	for _, l := range levels {
		ladder = append(ladder, domain.Pool{
			Price:          parseAmount(l.Price),
			ExecutableSize: l.ExecutableSize,
			NumberBidders:  l.NumberBidders,
		})
	}
	return ladder, nil
}

// SubmitBid formats, signs and submits one bid of quantity units at price.
func (c *Client) SubmitBid(ctx context.Context, contract string, wallet *domain.Wallet, price float64, quantity int, expiresAt time.Time) error {
	if c.dryRun {
		return c.limiter.Wait(ctx)
	}

	var formatted formatBidResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/collection-bids/format",
		body: formatBidRequest{
			Price:           amount{Unit: bidUnit, Amount: formatAmount(price)},
			Criteria:        bidCriteria{Type: "COLLECTION", Value: map[string]any{}},
			Quantity:        quantity,
			ExpirationTime:  expiresAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			ContractAddress: contract,
		},
		wallet: wallet,
	}, &formatted)
	if err != nil {
		return fmt.Errorf("blur.SubmitBid %s %dx%s: format: %w", contract, quantity, formatAmount(price), err)
	}
	if !formatted.Success || len(formatted.Signatures) == 0 {
		return fmt.Errorf("blur.SubmitBid %s %dx%s: format: no signature payload", contract, quantity, formatAmount(price))
	}

	toSign := formatted.Signatures[0]
	signature, err := wallet.Signer.SignTypedData(toSign.SignData)
	if err != nil {
		return fmt.Errorf("blur.SubmitBid %s: sign: %w", contract, err)
	}

	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/collection-bids/submit",
		body:   submitBidRequest{Signature: signature, MarketplaceData: toSign.MarketplaceData},
		wallet: wallet,
	}, nil)
	if err != nil {
		return fmt.Errorf("blur.SubmitBid %s %dx%s: submit: %w", contract, quantity, formatAmount(price), err)
	}
	return nil
}

// CancelBids cancels the wallet's bids at prices. "No bids found" is success:
// our local belief may be stale relative to the exchange.
func (c *Client) CancelBids(ctx context.Context, contract string, wallet *domain.Wallet, prices []float64) error {
	if c.dryRun {
		return c.limiter.Wait(ctx)
	}

	strPrices := make([]string, 0, len(prices))
	for _, p := range prices {
		strPrices = append(strPrices, formatAmount(p))
	}

	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/collection-bids/cancel",
		body:   cancelBidsRequest{Prices: strPrices, ContractAddress: contract},
		wallet: wallet,
	}, nil)
	if errors.Is(err, domain.ErrNoBidsFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blur.CancelBids %s %v: %w", contract, strPrices, err)
	}
	return nil
}

// FetchUserBids lists every live collection bid of the wallet.
func (c *Client) FetchUserBids(ctx context.Context, wallet *domain.Wallet) ([]ports.UserBid, error) {
	var resp priceLevelsResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/collection-bids/user/" + wallet.Address,
		query:  url.Values{"filters": {"{}"}},
		wallet: wallet,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("blur.FetchUserBids %s: %w", wallet.Address, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("blur.FetchUserBids %s: failed to load user bids", wallet.Address)
	}

	bids := make([]ports.UserBid, 0, len(resp.PriceLevels))
	for _, l := range resp.PriceLevels {
		bids = append(bids, ports.UserBid{
			ContractAddress: domain.NormalizeAddress(l.ContractAddress),
			Price:           parseAmount(l.Price),
			ExecutableSize:  l.ExecutableSize,
			OpenSize:        l.OpenSize,
		})
	}
	return bids, nil
}

// FetchCollection returns collection metadata and its floor price.
func (c *Client) FetchCollection(ctx context.Context, contract string, wallet *domain.Wallet) (ports.CollectionDetails, error) {
	var resp collectionResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/collections/" + contract,
		wallet: wallet,
	}, &resp)
	if err != nil {
		return ports.CollectionDetails{}, fmt.Errorf("blur.FetchCollection %s: %w", contract, err)
	}
	if !resp.Success {
		return ports.CollectionDetails{}, fmt.Errorf("blur.FetchCollection %s: failed to fetch collection", contract)
	}

	details := ports.CollectionDetails{
		ContractAddress: domain.NormalizeAddress(contract),
		Name:            resp.Collection.Name,
		Slug:            resp.Collection.Slug,
	}
	if fp := resp.Collection.FloorPrice; fp != nil && fp.Amount != "" {
		floor := parseAmount(fp.Amount)
		details.Floor = &floor
	}
	return details, nil
}

// formatAmount renders a price without float noise (0.1+0.2 style artefacts).
func formatAmount(price float64) string {
	return decimal.NewFromFloat(price).String()
}

// parseAmount converts a decimal string to float64. Invalid input yields 0.
func parseAmount(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
