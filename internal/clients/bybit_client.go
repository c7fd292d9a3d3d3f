package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a V5 client, authenticated only when a key is given.
func NewBybitClient(apiKey, apiSecret, baseURL string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}
	if baseURL != "" {
		client = client.WithBaseURL(baseURL)
	}

	return client
}
