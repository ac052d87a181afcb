package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takch02/blabus-session2-item1/internal/httpclient"
)

const listingURL = "http://localhost:8085/api/public/auctions/?status=IN_PROGRESS&page=0&size=10&sort=newest,Desc"

func TestRequestBuilderBuildsListingRequest(t *testing.T) {
	builder, err := httpclient.NewRequestBuilder("get", listingURL, map[string]string{
		"content-type": "application/json",
	})
	require.NoError(t, err)

	req, err := builder.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/public/auctions/", req.URL.Path)
	assert.Equal(t, "status=IN_PROGRESS&page=0&size=10&sort=newest,Desc", req.URL.RawQuery)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Nil(t, req.Body)
}

func TestRequestBuilderReturnsIndependentRequests(t *testing.T) {
	builder, err := httpclient.NewRequestBuilder(http.MethodGet, listingURL, map[string]string{"X-Run": "a"})
	require.NoError(t, err)

	first, err := builder.Build(context.Background())
	require.NoError(t, err)
	first.Header.Set("X-Run", "mutated")

	second, err := builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", second.Header.Get("X-Run"))
}

func TestRequestBuilderRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		headers map[string]string
	}{
		{name: "empty target", target: ""},
		{name: "relative target", target: "/api/public/auctions/"},
		{name: "header injection", target: listingURL, headers: map[string]string{"X-Bad": "a\r\nb"}},
		{name: "blank header name", target: listingURL, headers: map[string]string{" ": "v"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := httpclient.NewRequestBuilder(http.MethodGet, tc.target, tc.headers)
			assert.Error(t, err)
		})
	}
}

func TestQueryReachesServerVerbatim(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	builder, err := httpclient.NewRequestBuilder(http.MethodGet, srv.URL+"/api/public/auctions/?status=IN_PROGRESS&page=0&size=10&sort=newest,Desc", nil)
	require.NoError(t, err)
	req, err := builder.Build(context.Background())
	require.NoError(t, err)

	resp, err := httpclient.NewClient(5 * time.Second).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "status=IN_PROGRESS&page=0&size=10&sort=newest,Desc", gotQuery)
}

func TestNewClientNormalizesTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), httpclient.NewClient(-time.Second).Timeout)
	assert.Equal(t, 2*time.Second, httpclient.NewClient(2*time.Second).Timeout)
}
