package bybit

import (
	"context"
	"encoding/json"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// Authenticate verifies the API keys by requesting the unified
// account wallet. Auth failures are terminal for this adapter.
func (c *Client) Authenticate(ctx context.Context) error {
	const op = "authenticate"

	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}
	return c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		_, err = resultJSON(op, result)
		return err
	})
}

func (c *Client) GetBalance(ctx context.Context) (map[string]float64, error) {
	const op = "get_balance"

	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	var balances map[string]float64
	err := c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		b, err := parseWallet(op, result)
		if err != nil {
			return err
		}
		balances = b
		return nil
	})
	return balances, err
}

func parseWallet(op string, response interface{}) (map[string]float64, error) {
	resultBytes, err := resultJSON(op, response)
	if err != nil {
		return nil, err
	}

	var wallet struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
				Locked        string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &wallet); err != nil {
		return nil, exchange.WrapError(exchange.KindBusiness, op, err)
	}

	balances := make(map[string]float64)
	for _, account := range wallet.List {
		for _, coin := range account.Coin {
			free := parseFloat(coin.WalletBalance) - parseFloat(coin.Locked)
			if free > 0 {
				balances[coin.Coin] = free
			}
		}
	}
	return balances, nil
}
