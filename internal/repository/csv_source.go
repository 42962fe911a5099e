package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
)

var csvTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

// ReadCandlesCSV parses timestamp,open,high,low,close[,volume] rows. A header
// row is skipped. Timestamps are RFC3339, "YYYY-MM-DD HH:MM[:SS]" (UTC) or
// epoch seconds/millis. Rows are returned sorted by time.
func ReadCandlesCSV(r io.Reader, symbol string) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []models.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("csv line %d: want at least 5 fields, got %d", line, len(rec))
		}
		ts, err := parseCSVTime(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		var px [5]float64
		for i := 1; i < len(rec) && i <= 5; i++ {
			if px[i-1], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err != nil {
				return nil, fmt.Errorf("csv line %d field %d: %w", line, i+1, err)
			}
		}
		out = append(out, models.Candle{
			Bucket: ts, Symbol: symbol,
			Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: px[4],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// CSVSource serves one symbol's candles loaded from a file.
type CSVSource struct {
	symbol  string
	candles []models.Candle
}

func NewCSVSource(path, symbol string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	candles, err := ReadCandlesCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &CSVSource{symbol: symbol, candles: candles}, nil
}

func (s *CSVSource) Len() int { return len(s.candles) }

func (s *CSVSource) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	if symbol != s.symbol {
		return nil, fmt.Errorf("csv source holds %s, not %s", s.symbol, symbol)
	}
	c := s.candles
	if n > 0 && len(c) > n {
		c = c[len(c)-n:]
	}
	return append([]models.Candle(nil), c...), nil
}

func (s *CSVSource) GetCandles(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	if symbol != s.symbol {
		return nil, fmt.Errorf("csv source holds %s, not %s", s.symbol, symbol)
	}
	var out []models.Candle
	for _, c := range s.candles {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}
