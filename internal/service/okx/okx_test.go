package okx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/service/ratelimit"
	xhttp "PatternPull/pkg/http"
)

func TestParseRow(t *testing.T) {
	c, closed, err := parseRow("BTC-USDT", []string{"1704067200000", "42000.1", "42100", "41900.5", "42050.25", "12.5", "0", "0", "1"})
	if err != nil {
		t.Fatalf("parseRow: %v", err)
	}
	if !closed || c.Symbol != "BTC-USDT" || c.Close != 42050.25 || c.Low != 41900.5 || c.Volume != 12.5 {
		t.Fatalf("candle = %+v closed=%v", c, closed)
	}
	if !c.Bucket.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket = %v", c.Bucket)
	}

	_, closed, _ = parseRow("BTC-USDT", []string{"1704067200000", "1", "1", "1", "1", "1", "0", "0", "0"})
	if closed {
		t.Fatalf("confirm 0 should be an open bar")
	}
	if _, _, err := parseRow("X", []string{"1", "2"}); err == nil {
		t.Fatalf("short row should fail")
	}
	if _, _, err := parseRow("X", []string{"1", "abc", "1", "1", "1", "1"}); err == nil {
		t.Fatalf("bad price should fail")
	}
}

func TestDecodePush(t *testing.T) {
	frame := `{"arg":{"channel":"candle5m","instId":"ETH-USDT"},"data":[
        ["1704067500000","2300","2310","2295","2305","100","0","0","1"],
        ["1704067800000","2305","2306","2301","2302","5","0","0","0"]]}`
	out, err := decodePush([]byte(frame))
	if err != nil {
		t.Fatalf("decodePush: %v", err)
	}
	if len(out) != 1 || out[0].Symbol != "ETH-USDT" || out[0].Close != 2305 {
		t.Fatalf("out = %+v", out)
	}

	if out, err := decodePush([]byte("pong")); err != nil || out != nil {
		t.Fatalf("pong: %v %v", out, err)
	}
	if out, err := decodePush([]byte(`{"event":"subscribe","arg":{"channel":"candle5m","instId":"ETH-USDT"}}`)); err != nil || len(out) != 0 {
		t.Fatalf("ack: %v %v", out, err)
	}
	var apiErr *APIError
	if _, err := decodePush([]byte(`{"event":"error","code":"60012","msg":"bad"}`)); !errors.As(err, &apiErr) || apiErr.Code != "60012" {
		t.Fatalf("error event = %v", err)
	}
}

func TestSubscribeRequest(t *testing.T) {
	b, _ := json.Marshal(subscribeRequest("candle1H", []string{"BTC-USDT"}))
	want := `{"args":[{"channel":"candle1H","instId":"BTC-USDT"}],"op":"subscribe"}`
	if string(b) != want {
		t.Fatalf("got %s", b)
	}
}

// fakeHistory serves newest-first pages of 5m candles ending at end, honouring after and limit.
func fakeHistory(t *testing.T, end time.Time, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		cursor := end.Add(5 * time.Minute)
		if a := q.Get("after"); a != "" {
			ms, _ := strconv.ParseInt(a, 10, 64)
			cursor = time.UnixMilli(ms)
		}
		first := end.Add(-time.Duration(total-1) * 5 * time.Minute)
		var rows [][]string
		for ts := end; !ts.Before(first) && len(rows) < limit; ts = ts.Add(-5 * time.Minute) {
			if !ts.Before(cursor) {
				continue
			}
			p := strconv.FormatInt(ts.Unix()%1000, 10)
			rows = append(rows, []string{strconv.FormatInt(ts.UnixMilli(), 10), p, p, p, p, "1", "0", "0", "1"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": "0", "msg": "", "data": rows})
	}))
}

func TestFetchCandlesPaginates(t *testing.T) {
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := fakeHistory(t, end, 250)
	defer srv.Close()

	c := NewRESTClient(srv.URL, xhttp.NewClient(), ratelimit.New(100, 100), nil)
	got, err := c.FetchCandles(context.Background(), "BTC-USDT", domrepo.TF5m, 230, time.Time{})
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(got) != 230 {
		t.Fatalf("len = %d, want 230", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Bucket.Sub(got[i-1].Bucket) != 5*time.Minute {
			t.Fatalf("gap or disorder at %d: %v -> %v", i, got[i-1].Bucket, got[i].Bucket)
		}
	}
	if !got[len(got)-1].Bucket.Equal(end) {
		t.Fatalf("last = %v, want %v", got[len(got)-1].Bucket, end)
	}

	// asking for more than exists stops at the start of history
	all, err := c.FetchCandles(context.Background(), "BTC-USDT", domrepo.TF5m, 1000, time.Time{})
	if err != nil || len(all) != 250 {
		t.Fatalf("len = %d err=%v, want 250", len(all), err)
	}
}

func TestGetCandlesTrimsRange(t *testing.T) {
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := fakeHistory(t, end, 500)
	defer srv.Close()

	c := NewRESTClient(srv.URL, xhttp.NewClient(), ratelimit.New(100, 100), nil)
	from := end.Add(-10 * time.Hour)
	to := end.Add(-2 * time.Hour)
	got, err := c.GetCandles(context.Background(), "BTC-USDT", from, to, domrepo.TF5m)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 97 || !got[0].Bucket.Equal(from) || !got[len(got)-1].Bucket.Equal(to) {
		t.Fatalf("len=%d first=%v last=%v", len(got), got[0].Bucket, got[len(got)-1].Bucket)
	}
}

func TestAPIErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, xhttp.NewClient(), nil, nil)
	_, err := c.GetLatestNCandles(context.Background(), "NOPE", 10, domrepo.TF5m)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "51001" {
		t.Fatalf("err = %v", err)
	}
}

func TestRankByVolume(t *testing.T) {
	got := rankByVolume([]ticker{
		{InstID: "BTC-USDT-SWAP", VolCcy24h: "100"},
		{InstID: "ETH-USDT-SWAP", VolCcy24h: "250.5"},
		{InstID: "ETH-USD-SWAP", VolCcy24h: "9999"},
		{InstID: "DOGE-USDT-SWAP", VolCcy24h: "oops"},
	}, 2)
	if len(got) != 2 || got[0] != "ETH-USDT-SWAP" || got[1] != "BTC-USDT-SWAP" {
		t.Fatalf("got %v", got)
	}
}
