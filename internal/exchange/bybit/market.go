package bybit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// intervalMap translates common interval notation ("1m", "1h", "1d")
// into Bybit kline interval codes.
var intervalMap = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	const op = "get_price"

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var price float64
	err := c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		p, err := parseTickerPrice(op, result, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}

func (c *Client) GetHistoricalData(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]exchange.Candle, error) {
	const op = "get_historical_data"

	code, ok := intervalMap[interval]
	if !ok {
		code = interval
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": code,
		"limit":    limit,
	}
	if start != nil {
		params["start"] = start.UnixMilli()
	}
	if end != nil {
		params["end"] = end.UnixMilli()
	}

	var candles []exchange.Candle
	err := c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		cs, err := parseKlines(op, result)
		if err != nil {
			return err
		}
		candles = cs
		return nil
	})
	return candles, err
}

func parseTickerPrice(op string, response interface{}, symbol string) (float64, error) {
	resultBytes, err := resultJSON(op, response)
	if err != nil {
		return 0, err
	}

	var ticker struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &ticker); err != nil {
		return 0, exchange.WrapError(exchange.KindBusiness, op, err)
	}

	for _, t := range ticker.List {
		if t.Symbol == symbol {
			return parseFloat(t.LastPrice), nil
		}
	}
	return 0, exchange.NewError(exchange.KindBusiness, op, "symbol not found in ticker response")
}

func parseKlines(op string, response interface{}) ([]exchange.Candle, error) {
	resultBytes, err := resultJSON(op, response)
	if err != nil {
		return nil, err
	}

	var klines struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klines); err != nil {
		return nil, exchange.WrapError(exchange.KindBusiness, op, err)
	}

	// Bybit kline rows: [startTime, open, high, low, close, volume, turnover].
	// The API returns them newest first; walk backwards so callers get
	// chronological candles with the latest close at the end.
	candles := make([]exchange.Candle, 0, len(klines.List))
	for i := len(klines.List) - 1; i >= 0; i-- {
		row := klines.List[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, exchange.Candle{
			OpenTime: time.UnixMilli(parseInt(row[0])),
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
		})
	}
	return candles, nil
}

// resultJSON validates the server envelope and re-marshals its Result
// field for typed decoding.
func resultJSON(op string, response interface{}) ([]byte, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, exchange.NewError(exchange.KindBusiness, op, "invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, classifyCode(op, serverResp.RetCode, serverResp.RetMsg)
	}
	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, exchange.WrapError(exchange.KindBusiness, op, err)
	}
	return resultBytes, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
