package okx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"PatternPull/internal/domain/models"
)

// envelope is the REST response wrapper. code "0" means success.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError is a non-zero OKX response code.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string { return fmt.Sprintf("okx error %s: %s", e.Code, e.Msg) }

type pushArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// pushMessage covers data pushes and op replies (event/code/msg) on the websocket.
type pushMessage struct {
	Arg   pushArg    `json:"arg"`
	Data  [][]string `json:"data"`
	Event string     `json:"event"`
	Code  string     `json:"code"`
	Msg   string     `json:"msg"`
}

// parseRow decodes [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm].
// closed is false for a still-forming bar.
func parseRow(instID string, row []string) (c models.Candle, closed bool, err error) {
	if len(row) < 6 {
		return c, false, fmt.Errorf("candle row: %d fields", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return c, false, fmt.Errorf("candle ts %q: %w", row[0], err)
	}

	var px [5]float64
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(row[i+1])
		if err != nil {
			return c, false, fmt.Errorf("candle field %d %q: %w", i+1, row[i+1], err)
		}
		px[i] = d.InexactFloat64()
	}

	c = models.Candle{
		Bucket: time.UnixMilli(ms).UTC(),
		Symbol: instID,
		Open:   px[0],
		High:   px[1],
		Low:    px[2],
		Close:  px[3],
		Volume: px[4],
	}
	closed = len(row) < 9 || row[8] == "1"
	return c, closed, nil
}

// parseRows decodes a newest-first page and returns it oldest first.
func parseRows(instID string, rows [][]string) ([]models.Candle, error) {
	out := make([]models.Candle, len(rows))
	for i, row := range rows {
		c, _, err := parseRow(instID, row)
		if err != nil {
			return nil, err
		}
		out[len(rows)-1-i] = c
	}
	return out, nil
}

type ticker struct {
	InstID    string `json:"instId"`
	VolCcy24h string `json:"volCcy24h"`
}
