package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/kroma-labs/apiwrap-go/apiclient"
	"github.com/kroma-labs/apiwrap-go/resource"
)

const exchangePath = "/1c_exchange.php"

// Orders is the order exchange endpoint.
type Orders struct {
	*resource.Model
}

// NewOrders is the resource.Factory for "order_bot".
func NewOrders(req *apiclient.Request) any {
	req.Apply(apiclient.WithJSON(false), apiclient.WithCookies(true), apiclient.WithHTTPS(true))
	return &Orders{newOrderModel(req)}
}

// Order is a single exchanged order.
type Order struct {
	*resource.Model
}

func newOrderModel(req *apiclient.Request) *resource.Model {
	return resource.NewModel(req, "order", resource.Schema{
		Fields: []string{"ORDERID", "STATUS", "SUM", "PHONE", "COMMENT"},
	}).OnSet("PHONE", func(v any) (any, error) {
		return resource.OnlyNumbers(fmt.Sprint(v)), nil
	})
}

// Load fetches pending orders keyed by order id. With confirm set the
// server is told the orders were received. An empty or null body means
// there is nothing to fetch; an error status is returned as an error.
func (o *Orders) Load(ctx context.Context, confirm bool) (map[string]*Order, error) {
	o.Params().ClearGet()
	res, err := o.Get(ctx, exchangePath, map[string]any{"type": "order_bot"})
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("load orders: HTTP %d", res.StatusCode)
	}
	if res.IsNull() {
		return nil, nil
	}

	orders := make(map[string]*Order)
	for _, item := range res.Get("@this").Array() {
		order := &Order{newOrderModel(o.Request)}
		for key, value := range item.Map() {
			if !order.HasField(key) {
				continue
			}
			if err := order.SetField(key, strings.TrimSpace(value.String())); err != nil {
				return nil, err
			}
		}
		id, err := resource.CheckID(order.Field("ORDERID"))
		if err != nil {
			return nil, fmt.Errorf("order %v: %w", order.Field("ORDERID"), err)
		}
		orders[fmt.Sprint(id)] = order
	}

	if confirm {
		if err := o.Confirm(ctx); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Confirm acknowledges the last loaded batch.
func (o *Orders) Confirm(ctx context.Context) error {
	o.Params().ClearGet()
	_, err := o.Get(ctx, exchangePath, map[string]any{"type": "order_bot", "complete": "Y"})
	return err
}

// Update sends processing results back as a JSON list.
func (o *Orders) Update(ctx context.Context, orders []*Order) (*apiclient.Result, error) {
	out := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		out = append(out, order.Values())
	}

	o.Params().ClearGet().ClearPost().AddPost("orders", out)
	defer o.Params().ClearPost()
	return o.Get(ctx, exchangePath, map[string]any{"type": "order_bot_result"},
		apiclient.Override(apiclient.WithJSON(true)))
}
