// Command sse_load opens many concurrent subscriptions to the scan event
// stream of a running bot and reports connection and payload statistics.
// Every scan payload is decoded, so malformed events show up as decode errors.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vadiminshakov/updown/internal/services/scanner"
	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	scans       atomic.Int64
	decodeErrs  atomic.Int64
	heartbeats  atomic.Int64
}

func main() {
	var (
		targetURL string
		conns     int
		duration  time.Duration
		rampUp    time.Duration
	)
	flag.StringVar(&targetURL, "url", "http://localhost:8080/events", "scan event stream URL")
	flag.IntVar(&conns, "conns", 200, "number of concurrent subscribers")
	flag.DurationVar(&duration, "dur", time.Minute, "test duration (0 runs until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	l, _ := zap.NewDevelopment()
	defer l.Sync()

	if conns <= 0 {
		l.Fatal("invalid connection count", zap.Int("conns", conns))
	}
	if rampUp == 0 && conns > 100 {
		rampUp = max(time.Second, time.Duration(conns/500)*time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{Transport: &http.Transport{
		MaxConnsPerHost:     conns + 100,
		MaxIdleConns:        conns + 100,
		MaxIdleConnsPerHost: conns + 100,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}}

	l.Info("starting load",
		zap.String("url", targetURL),
		zap.Int("conns", conns),
		zap.Duration("duration", duration),
		zap.Duration("ramp", rampUp))

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
	)
	go report(ctx, l, &c, start)

	var gap time.Duration
	if rampUp > 0 {
		gap = rampUp / time.Duration(conns)
	}
	for i := 0; i < conns && ctx.Err() == nil; i++ {
		if i > 0 && gap > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(gap):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, &c)
		}()
	}
	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	l.Info("done",
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("scans", c.scans.Load()),
		zap.Int64("decode_errs", c.decodeErrs.Load()),
		zap.Int64("heartbeats", c.heartbeats.Load()),
		zap.Float64("scans_per_sec", float64(c.scans.Load())/elapsed.Seconds()),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)))
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	event := ""
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, ":"):
			c.heartbeats.Add(1)
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "scan":
			var res scanner.Result
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &res); err != nil {
				c.decodeErrs.Add(1)
			} else {
				c.scans.Add(1)
			}
		case line == "":
			event = ""
		}
	}
}

func report(ctx context.Context, l *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.Int64("scans", c.scans.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
