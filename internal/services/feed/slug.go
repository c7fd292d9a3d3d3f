package feed

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/vadiminshakov/updown/internal/domain"
)

const (
	window15m = 900
	window4h  = 14400
	// 4h windows start one hour after the epoch-aligned boundary.
	offset4h = 3600
	// daily markets resolve at noon US Eastern.
	dailyResolutionHour = 12
)

var eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// Slug returns the Polymarket event slug of the market window active at now.
func Slug(market domain.MarketKey, now time.Time) (string, bool) {
	ts := now.Unix()
	et := now.In(eastern)

	switch market.Timeframe {
	case domain.Timeframe15m:
		return fmt.Sprintf("%s-updown-15m-%d", market.Asset.Slug(), ts/window15m*window15m), true
	case domain.Timeframe4h:
		return fmt.Sprintf("%s-updown-4h-%d", market.Asset.Slug(), start4h(ts)), true
	case domain.Timeframe1h:
		return fmt.Sprintf("%s-up-or-down-%s-%d-%s-et",
			market.Asset.LongSlug(), monthName(et.Month()), et.Day(), hour12(et.Hour())), true
	case domain.TimeframeDaily:
		target := dailyResolution(et)
		return fmt.Sprintf("%s-up-or-down-on-%s-%d",
			market.Asset.LongSlug(), monthName(target.Month()), target.Day()), true
	}
	return "", false
}

// Expiry returns when the market window active at now resolves.
func Expiry(tf domain.Timeframe, now time.Time) (time.Time, bool) {
	ts := now.Unix()

	switch tf {
	case domain.Timeframe15m:
		return time.Unix((ts/window15m+1)*window15m, 0).UTC(), true
	case domain.Timeframe1h:
		return time.Unix((ts/3600+1)*3600, 0).UTC(), true
	case domain.Timeframe4h:
		return time.Unix(start4h(ts)+window4h, 0).UTC(), true
	case domain.TimeframeDaily:
		return dailyResolution(now.In(eastern)).UTC(), true
	}
	return time.Time{}, false
}

func start4h(ts int64) int64 {
	return (ts-offset4h)/window4h*window4h + offset4h
}

// dailyResolution next noon ET at or after et, strictly after once noon has passed.
func dailyResolution(et time.Time) time.Time {
	noon := time.Date(et.Year(), et.Month(), et.Day(), dailyResolutionHour, 0, 0, 0, eastern)
	if !et.Before(noon) {
		noon = time.Date(et.Year(), et.Month(), et.Day()+1, dailyResolutionHour, 0, 0, 0, eastern)
	}
	return noon
}

func monthName(m time.Month) string {
	return strings.ToLower(m.String())
}

func hour12(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	}
	return fmt.Sprintf("%dpm", h-12)
}
