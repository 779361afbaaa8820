package httpjson

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"pricewatch/internal/market"
)

var lastSchema = MustCompile("last", `{"type":"object","required":["last"]}`)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("echo") != "" {
			body = `{"last":"` + r.URL.Query().Get("echo") + `"}`
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New("test.src", srv.URL+"/", 0)
}

func TestGetOK(t *testing.T) {
	c := serve(t, http.StatusOK, "")
	doc, err := c.Get(context.Background(), Request{Op: "ticker", Path: "/t", Query: url.Values{"echo": {"4000.5"}}, Schema: lastSchema})
	require.NoError(t, err)
	price, ok := Price(doc.Get("last"))
	assert.True(t, ok)
	assert.Equal(t, 4000.5, price)
}

func TestGetStatusIsFetchError(t *testing.T) {
	c := serve(t, http.StatusServiceUnavailable, `{}`)
	_, err := c.Get(context.Background(), Request{Op: "ticker", Market: "BTCUSD", Path: "/t"})
	require.Error(t, err)
	var fe *market.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)
	assert.Equal(t, "test.src", fe.Source)
	assert.Equal(t, "BTCUSD", fe.Market)
}

func TestGetTransportIsFetchError(t *testing.T) {
	c := New("test.src", "http://127.0.0.1:1", 0)
	_, err := c.Get(context.Background(), Request{Op: "ticker", Path: "/t"})
	assert.True(t, market.IsFetchError(err))
}

func TestGetMalformed(t *testing.T) {
	c := serve(t, http.StatusOK, `<html>`)
	_, err := c.Get(context.Background(), Request{Op: "ticker", Path: "/t"})
	assert.True(t, market.IsMalformed(err))

	c = serve(t, http.StatusOK, `{"bid":1}`)
	_, err = c.Get(context.Background(), Request{Op: "ticker", Path: "/t", Schema: lastSchema})
	assert.True(t, market.IsMalformed(err))
}

func TestPrice(t *testing.T) {
	cases := map[string]struct {
		json string
		want float64
		ok   bool
	}{
		"number": {`{"v":12.5}`, 12.5, true},
		"string": {`{"v":"12.5"}`, 12.5, true},
		"empty":  {`{"v":""}`, 0, false},
		"zero":   {`{"v":0}`, 0, false},
		"object": {`{"v":{}}`, 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := Price(gjson.Get(tc.json, "v"))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
