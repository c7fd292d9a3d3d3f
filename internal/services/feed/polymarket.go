package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultClobURL  = "https://clob.polymarket.com"
	DefaultWSURL    = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	httpTimeout = 10 * time.Second
)

// PolymarketClient talks to the Polymarket gamma and CLOB REST APIs.
type PolymarketClient struct {
	gamma *resty.Client
	clob  *resty.Client
}

// NewPolymarketClient creates a client for the given API hosts.
func NewPolymarketClient(gammaURL, clobURL string) *PolymarketClient {
	return &PolymarketClient{
		gamma: newRestClient(gammaURL),
		clob:  newRestClient(clobURL),
	}
}

func newRestClient(host string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(host, "/")).
		SetTimeout(httpTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "updown")
}

type gammaEvent struct {
	Ticker  string        `json:"ticker"`
	Slug    string        `json:"slug"`
	EndDate string        `json:"endDate"`
	Markets []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	// ClobTokenIDs is a JSON encoded array: [up, down].
	ClobTokenIDs string `json:"clobTokenIds"`
	Closed       bool   `json:"closed"`
}

// MarketWindow outcome tokens and resolution time of one market window.
type MarketWindow struct {
	Tokens domain.MarketTokens
	Expiry time.Time
}

// ResolveMarket looks up the window of market active at now.
func (c *PolymarketClient) ResolveMarket(ctx context.Context, market domain.MarketKey, now time.Time) (MarketWindow, error) {
	slug, ok := Slug(market, now)
	if !ok {
		return MarketWindow{}, errors.Errorf("no slug scheme for %s", market)
	}

	var events []gammaEvent
	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"slug": slug, "limit": "1"}).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return MarketWindow{}, errors.Wrapf(err, "gamma events %s", slug)
	}
	if resp.IsError() {
		return MarketWindow{}, errors.Errorf("gamma events %s: http %d", slug, resp.StatusCode())
	}
	if len(events) == 0 || (events[0].Ticker != slug && events[0].Slug != slug) || len(events[0].Markets) == 0 {
		return MarketWindow{}, errors.Wrapf(ErrNoData, "no active market for %s", slug)
	}

	var ids []string
	if err := json.Unmarshal([]byte(events[0].Markets[0].ClobTokenIDs), &ids); err != nil {
		return MarketWindow{}, errors.Wrapf(err, "decode token ids of %s", slug)
	}
	if len(ids) < 2 || ids[0] == "" || ids[1] == "" {
		return MarketWindow{}, errors.Wrapf(ErrNoData, "market %s has %d token ids", slug, len(ids))
	}

	expiry, _ := Expiry(market.Timeframe, now)
	return MarketWindow{
		Tokens: domain.MarketTokens{Slug: slug, UpToken: ids[0], DownToken: ids[1]},
		Expiry: expiry,
	}, nil
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

// Midpoint fetches the CLOB midpoint price of a token.
func (c *PolymarketClient) Midpoint(ctx context.Context, token string) (decimal.Decimal, error) {
	var out midpointResponse
	resp, err := c.clob.R().
		SetContext(ctx).
		SetQueryParam("token_id", token).
		SetResult(&out).
		Get("/midpoint")
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "midpoint %s", token)
	}
	if resp.IsError() {
		return decimal.Zero, errors.Errorf("midpoint %s: http %d", token, resp.StatusCode())
	}
	if out.Mid == "" {
		return decimal.Zero, errors.Wrapf(ErrNoData, "midpoint %s", token)
	}

	mid, err := decimal.NewFromString(out.Mid)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse midpoint %q", out.Mid)
	}
	return mid, nil
}
