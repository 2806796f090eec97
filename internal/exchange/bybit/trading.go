package bybit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/vkoshel/tradegate/internal/exchange"
)

func (c *Client) PlaceOrder(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	const op = "place_order"

	if order.Symbol == "" {
		return nil, exchange.NewError(exchange.KindValidation, op, "symbol is required")
	}
	if order.Amount <= 0 {
		return nil, exchange.NewError(exchange.KindValidation, op, "amount must be positive")
	}
	if order.Side != exchange.SideBuy && order.Side != exchange.SideSell {
		return nil, exchange.NewError(exchange.KindValidation, op, "invalid order side")
	}

	params := map[string]interface{}{
		"category":  c.category,
		"symbol":    order.Symbol,
		"side":      string(order.Side),
		"orderType": apiOrderType(order.Type),
		"qty":       strconv.FormatFloat(order.Amount, 'f', -1, 64),
	}
	switch order.Type {
	case exchange.OrderTypeLimit:
		if order.Price <= 0 {
			return nil, exchange.NewError(exchange.KindValidation, op, "price is required for limit orders")
		}
		params["price"] = strconv.FormatFloat(order.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
	case exchange.OrderTypeStopLimit:
		if order.Price <= 0 {
			return nil, exchange.NewError(exchange.KindValidation, op, "price is required for stop-limit orders")
		}
		params["price"] = strconv.FormatFloat(order.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
		if trigger, ok := order.Extra["triggerPrice"]; ok {
			params["triggerPrice"] = trigger
		}
	}
	if order.OrderLinkID != "" {
		params["orderLinkId"] = order.OrderLinkID
	}
	for k, v := range order.Extra {
		if _, exists := params[k]; !exists {
			params[k] = v
		}
	}

	var res *exchange.OrderResult
	err := c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		placed, err := parseOrder(op, result)
		if err != nil {
			return err
		}
		// The placement response carries only the order id; fill in
		// what the venue does not echo back.
		if placed.Symbol == "" {
			placed.Symbol = order.Symbol
		}
		if placed.Amount == 0 {
			placed.Amount = order.Amount
		}
		if placed.Price == 0 {
			placed.Price = order.Price
		}
		if placed.Side == "" {
			placed.Side = order.Side
		}
		if placed.Status == "" {
			placed.Status = exchange.OrderStatusNew
		}
		res = placed
		return nil
	})
	return res, err
}

func (c *Client) GetOrderStatus(ctx context.Context, orderID, symbol string) (*exchange.OrderResult, error) {
	const op = "get_order_status"

	params := map[string]interface{}{
		"category": c.category,
		"orderId":  orderID,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	var res *exchange.OrderResult
	err := c.call(ctx, op, func(callCtx context.Context) error {
		// Realtime endpoint covers both open and recently closed
		// orders; fall back to history for anything older.
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		orders, err := parseOrderList(op, result)
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].OrderID == orderID {
				res = &orders[i]
				return nil
			}
		}

		result, err = c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		orders, err = parseOrderList(op, result)
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].OrderID == orderID {
				res = &orders[i]
				return nil
			}
		}
		return exchange.NewError(exchange.KindBusiness, op, "order not found").WithCode(errCodeOrderNotFound)
	})
	return res, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	const op = "cancel_order"

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	err := c.call(ctx, op, func(callCtx context.Context) error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(callCtx)
		if err != nil {
			return transportError(op, err)
		}
		_, err = resultJSON(op, result)
		return err
	})
	if exchange.IsAlreadyClosed(err) {
		// The order reached a terminal state before the cancel
		// arrived. That is the outcome the caller wanted.
		return nil
	}
	return err
}

func apiOrderType(t exchange.OrderType) string {
	switch t {
	case exchange.OrderTypeLimit, exchange.OrderTypeStopLimit:
		return "Limit"
	default:
		return "Market"
	}
}

type apiOrder struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	AvgPrice    string `json:"avgPrice"`
	OrderStatus string `json:"orderStatus"`
	CreatedTime string `json:"createdTime"`
	UpdatedTime string `json:"updatedTime"`
}

func (o apiOrder) toResult() exchange.OrderResult {
	price := parseFloat(o.AvgPrice)
	if price == 0 {
		price = parseFloat(o.Price)
	}
	return exchange.OrderResult{
		OrderID: o.OrderID,
		Symbol:  o.Symbol,
		Side:    exchange.Side(o.Side),
		Amount:  parseFloat(o.Qty),
		Price:   price,
		Status:  exchange.OrderStatus(o.OrderStatus),
		Created: time.UnixMilli(parseInt(o.CreatedTime)),
		Updated: time.UnixMilli(parseInt(o.UpdatedTime)),
	}
}

func parseOrder(op string, response interface{}) (*exchange.OrderResult, error) {
	resultBytes, err := resultJSON(op, response)
	if err != nil {
		return nil, err
	}
	var o apiOrder
	if err := json.Unmarshal(resultBytes, &o); err != nil {
		return nil, exchange.WrapError(exchange.KindBusiness, op, err)
	}
	res := o.toResult()
	return &res, nil
}

func parseOrderList(op string, response interface{}) ([]exchange.OrderResult, error) {
	resultBytes, err := resultJSON(op, response)
	if err != nil {
		return nil, err
	}
	var list struct {
		List []apiOrder `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &list); err != nil {
		return nil, exchange.WrapError(exchange.KindBusiness, op, err)
	}
	orders := make([]exchange.OrderResult, 0, len(list.List))
	for _, o := range list.List {
		orders = append(orders, o.toResult())
	}
	return orders, nil
}
