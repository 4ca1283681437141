package blur

import "encoding/json"

// priceLevel is one entry of /executable-bids and /collection-bids/user.
type priceLevel struct {
	Price                 string   `json:"price"`
	ContractAddress       string   `json:"contractAddress"`
	ExecutableSize        float64  `json:"executableSize"`
	OpenSize              float64  `json:"openSize"`
	NumberBidders         int      `json:"numberBidders"`
	BidderAddressesSample []string `json:"bidderAddressesSample"`
}

type priceLevelsResponse struct {
	Success     bool         `json:"success"`
	PriceLevels []priceLevel `json:"priceLevels"`
}

type amount struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type collectionResponse struct {
	Success    bool `json:"success"`
	Collection struct {
		ContractAddress string  `json:"contractAddress"`
		Name            string  `json:"name"`
		Slug            string  `json:"slug"`
		FloorPrice      *amount `json:"floorPrice"`
	} `json:"collection"`
}

type bidCriteria struct {
	Type  string         `json:"type"`
	Value map[string]any `json:"value"`
}

type formatBidRequest struct {
	Price           amount      `json:"price"`
	Criteria        bidCriteria `json:"criteria"`
	Quantity        int         `json:"quantity"`
	ExpirationTime  string      `json:"expirationTime"`
	ContractAddress string      `json:"contractAddress"`
}

type formatBidResponse struct {
	Success    bool `json:"success"`
	Signatures []struct {
		Type            string          `json:"type"`
		SignData        json.RawMessage `json:"signData"`
		Marketplace     string          `json:"marketplace"`
		MarketplaceData string          `json:"marketplaceData"`
	} `json:"signatures"`
}

type submitBidRequest struct {
	Signature       string `json:"signature"`
	MarketplaceData string `json:"marketplaceData"`
}

type cancelBidsRequest struct {
	Prices          []string `json:"prices"`
	ContractAddress string   `json:"contractAddress"`
}

type challengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type challengeResponse struct {
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress"`
	ExpiresOn     string `json:"expiresOn"`
	HMAC          string `json:"hmac"`
}

type loginRequest struct {
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress"`
	ExpiresOn     string `json:"expiresOn"`
	HMAC          string `json:"hmac"`
	Signature     string `json:"signature"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}
