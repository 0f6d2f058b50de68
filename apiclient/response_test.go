package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "given object, then returns map",
			raw:  `{"id":5,"name":"order"}`,
			want: map[string]any{"id": float64(5), "name": "order"},
		},
		{
			name: "given array, then returns slice",
			raw:  `[1,"a",true]`,
			want: []any{float64(1), "a", true},
		},
		{
			name: "given scalar, then returns scalar",
			raw:  `"ok"`,
			want: "ok",
		},
		{
			name: "given malformed JSON, then returns nil",
			raw:  "not-json",
			want: nil,
		},
		{
			name: "given empty body, then returns nil",
			raw:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJSON([]byte(tt.raw)))
		})
	}
}

func TestResult_Accessors(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
	res := newResult(resp, []byte(`{"items":[{"id":1},{"id":2}],"total":2}`), true)

	assert.True(t, res.IsSuccess())
	assert.False(t, res.IsError())
	assert.False(t, res.IsNull())
	assert.True(t, res.Parsed())

	m, ok := res.Map()
	require.True(t, ok)
	assert.InDelta(t, 2, m["total"], 0)

	_, ok = res.List()
	assert.False(t, ok)

	assert.Equal(t, int64(2), res.Get("items.1.id").Int())
	assert.Equal(t, "[1,2]", res.Get("items.#.id").Raw)

	var typed struct {
		Items []struct {
			ID int `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, res.Decode(&typed))
	require.Len(t, typed.Items, 2)
	assert.Equal(t, 2, typed.Items[1].ID)
}

func TestResult_Unparsed(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
	res := newResult(resp, []byte("upstream down"), false)

	assert.Equal(t, "upstream down", res.Data())
	assert.Equal(t, "upstream down", res.String())
	assert.False(t, res.Parsed())
	assert.True(t, res.IsError())
	assert.False(t, res.IsSuccess())
}

func TestResult_MalformedJSON(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
	res := newResult(resp, []byte("not-json"), true)

	assert.True(t, res.IsNull())
	assert.Equal(t, []byte("not-json"), res.Raw())
	assert.Error(t, res.Decode(&map[string]any{}))
}
