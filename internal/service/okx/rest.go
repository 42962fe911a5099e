package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/service/ratelimit"
	xhttp "PatternPull/pkg/http"
	applogger "PatternPull/pkg/logger"
)

const pageSize = 100

// RESTClient fetches candle history from the OKX public market API.
// It implements repository.CandleSource.
type RESTClient struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	l       *applogger.Logger
}

func NewRESTClient(baseURL string, httpClient *xhttp.Client, limiter *ratelimit.Limiter, l *applogger.Logger) *RESTClient {
	if httpClient == nil {
		httpClient = xhttp.NewClient(xhttp.WithTimeout(10*time.Second), xhttp.WithRetries(2, 500*time.Millisecond))
	}
	if limiter == nil {
		limiter = ratelimit.New(10, 10)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
		l:       l,
	}
}

func (c *RESTClient) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx, path); err != nil {
		return err
	}
	var env envelope
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      "GET",
		URL:         c.baseURL + path,
		QueryParams: q,
	}, &env); err != nil {
		return fmt.Errorf("okx %s: %w", path, err)
	}
	if env.Code != "0" {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("okx %s data: %w", path, err)
	}
	return nil
}

// FetchCandles pages backwards through history-candles with the after cursor
// until n candles are collected or history runs out. Result is oldest first.
func (c *RESTClient) FetchCandles(ctx context.Context, instID string, bar domrepo.Timeframe, n int, before time.Time) ([]models.Candle, error) {
	var pages [][]models.Candle
	got := 0
	after := ""
	if !before.IsZero() {
		after = strconv.FormatInt(before.UnixMilli(), 10)
	}

	for got < n {
		q := url.Values{}
		q.Set("instId", instID)
		q.Set("bar", string(bar))
		q.Set("limit", strconv.Itoa(min(pageSize, n-got)))
		if after != "" {
			q.Set("after", after)
		}

		var rows [][]string
		if err := c.get(ctx, "/api/v5/market/history-candles", q, &rows); err != nil {
			if got > 0 {
				c.l.Warn("okx history truncated",
					applogger.String("inst_id", instID),
					applogger.Int("got", got),
					applogger.Error(err))
				break
			}
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		page, err := parseRows(instID, rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		got += len(page)
		after = rows[len(rows)-1][0]
	}

	out := make([]models.Candle, 0, got)
	for i := len(pages) - 1; i >= 0; i-- {
		out = append(out, pages[i]...)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (c *RESTClient) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	return c.FetchCandles(ctx, symbol, tf, n, time.Time{})
}

// GetCandles fetches backwards from to until from is passed, then trims.
func (c *RESTClient) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	step := tf.Duration()
	if step <= 0 {
		return nil, fmt.Errorf("okx: unsupported timeframe %q", tf)
	}
	n := int(to.Sub(from)/step) + 1
	if n <= 0 {
		return nil, nil
	}
	candles, err := c.FetchCandles(ctx, symbol, tf, n, to.Add(time.Millisecond))
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(candles), func(i int) bool { return !candles[i].Bucket.Before(from) })
	return candles[i:], nil
}

// TopVolume returns the n USDT swap instruments with the largest 24h volume.
func (c *RESTClient) TopVolume(ctx context.Context, n int) ([]string, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	var tickers []ticker
	if err := c.get(ctx, "/api/v5/market/tickers", q, &tickers); err != nil {
		return nil, err
	}
	return rankByVolume(tickers, n), nil
}

func rankByVolume(tickers []ticker, n int) []string {
	type ranked struct {
		id  string
		vol decimal.Decimal
	}
	var rs []ranked
	for _, t := range tickers {
		if !strings.HasSuffix(t.InstID, "-USDT-SWAP") {
			continue
		}
		v, err := decimal.NewFromString(t.VolCcy24h)
		if err != nil {
			v = decimal.Zero
		}
		rs = append(rs, ranked{t.InstID, v})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].vol.GreaterThan(rs[j].vol) })
	if n > 0 && len(rs) > n {
		rs = rs[:n]
	}
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.id
	}
	return out
}
