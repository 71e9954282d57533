package pendle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Mak300079/MT-watchers/internal/model"
)

// DefaultAPIURL is the Pendle core assets listing endpoint.
const DefaultAPIURL = "https://api-v2.pendle.finance/core/v1/assets/all"

// Client fetches the full asset listing for one chain.
type Client struct {
	apiURL     string
	chainID    uint64
	httpClient *http.Client
}

func NewClient(apiURL string, chainID uint64) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if chainID == 0 {
		chainID = 1
	}
	return &Client{
		apiURL:     apiURL,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchAssets returns the current asset listing.
func (c *Client) FetchAssets(ctx context.Context) ([]model.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build assets request: %w", err)
	}
	query := req.URL.Query()
	query.Set("chainId", strconv.FormatUint(c.chainID, 10))
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assets endpoint returned status %s", resp.Status)
	}

	var payload struct {
		Assets []model.Asset `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse assets response: %w", err)
	}

	return payload.Assets, nil
}
