package shop

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/apiwrap-go/apiclient"
	"github.com/kroma-labs/apiwrap-go/logger"
	"github.com/kroma-labs/apiwrap-go/resource"
)

const batch = `[
	{"ORDERID": "17", "STATUS": " new ", "PHONE": "+7 (900) 111-22-33", "EXTRA": "x"},
	{"ORDERID": "18", "STATUS": "paid"}
]`

func newOrders(t *testing.T, mock *apiclient.MockTransport) *Orders {
	t.Helper()

	client := resource.NewClient(
		resource.WithRoute(logger.NewMemoryRoute()),
		resource.WithHandle(apiclient.NewHandle(
			apiclient.WithMockTransport(mock),
			apiclient.WithCookieFile(filepath.Join(t.TempDir(), "cookie.txt")),
			apiclient.WithProxyFromEnvironment(false),
		)),
		resource.WithRegistry(resource.NewRegistry().Register("order_bot", NewOrders)),
	)
	t.Cleanup(client.Close)
	client.Params().AddAuth(apiclient.AuthDomain, "shop.example.pro")

	orders, err := resource.Resolve[*Orders](client, "order_bot")
	require.NoError(t, err)
	return orders
}

func TestOrders_Load(t *testing.T) {
	tests := []struct {
		name      string
		confirm   bool
		wantCalls []string
	}{
		{
			name:      "given no confirm, then only fetches",
			wantCalls: []string{"type=order_bot"},
		},
		{
			name:      "given confirm, then acknowledges the batch",
			confirm:   true,
			wantCalls: []string{"type=order_bot", "complete=Y&type=order_bot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := apiclient.NewMockTransport().StubResponse(http.StatusOK, batch)
			orders := newOrders(t, mock)

			got, err := orders.Load(context.Background(), tt.confirm)
			require.NoError(t, err)
			require.Len(t, got, 2)

			first := got["17"]
			require.NotNil(t, first)
			assert.Equal(t, "new", first.Field("STATUS"))
			assert.Equal(t, "79001112233", first.Field("PHONE"))
			assert.Nil(t, first.Field("EXTRA"))

			var calls []string
			for _, req := range mock.Requests() {
				assert.Equal(t, http.MethodGet, req.Method)
				calls = append(calls, req.URL.RawQuery)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestOrders_Load_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "given server error, then returns error", status: http.StatusInternalServerError},
		{name: "given unavailable, then returns error", status: http.StatusServiceUnavailable},
		{name: "given forbidden, then returns error", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := apiclient.NewMockTransport().StubResponse(tt.status, `{"error":"maintenance"}`)
			orders := newOrders(t, mock)

			got, err := orders.Load(context.Background(), true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.status))
			assert.Nil(t, got)
			assert.Equal(t, 1, mock.RequestCount())
			assert.Equal(t, tt.status, orders.LastHTTPCode())
		})
	}
}

func TestOrders_Load_Empty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "given null body, then returns nothing", body: `null`},
		{name: "given empty body, then returns nothing", body: ``},
		{name: "given malformed body, then returns nothing", body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := apiclient.NewMockTransport().StubResponse(http.StatusOK, tt.body)
			orders := newOrders(t, mock)

			got, err := orders.Load(context.Background(), true)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Equal(t, 1, mock.RequestCount())
		})
	}
}

func TestOrders_Load_BadID(t *testing.T) {
	mock := apiclient.NewMockTransport().StubResponse(http.StatusOK, `[{"ORDERID": "abc"}]`)
	orders := newOrders(t, mock)

	_, err := orders.Load(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apiclient.ErrValidation)
}

func TestOrders_Update(t *testing.T) {
	mock := apiclient.NewMockTransport().StubResponse(http.StatusOK, batch)
	orders := newOrders(t, mock)

	loaded, err := orders.Load(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, loaded["18"].SetField("STATUS", "shipped"))

	res, err := orders.Update(context.Background(), []*Order{loaded["18"]})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())

	sent := mock.LastRequest()
	require.NotNil(t, sent)
	assert.Equal(t, http.MethodPost, sent.Method)
	assert.Equal(t, "type=order_bot_result", sent.URL.RawQuery)
	assert.Equal(t, "application/json", sent.Header.Get("Content-Type"))

	var payload struct {
		Orders []map[string]string `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(mock.LastBody(), &payload))
	assert.Equal(t, []map[string]string{{"ORDERID": "18", "STATUS": "shipped"}}, payload.Orders)
	assert.False(t, orders.Params().HasPost())
}
