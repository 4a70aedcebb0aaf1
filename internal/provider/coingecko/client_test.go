package coingecko_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vaultpricing/internal/provider/coingecko"
)

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: a client is returned with or without a key.
	require.NotNil(t, coingecko.NewClient(""))
	require.NotNil(t, coingecko.NewClient("test"))
}

func TestWithAPIKeyHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: the demo key travels as a header, never in the query.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "test-key", req.Header.Get("x-cg-demo-api-key"))
			require.Empty(t, req.URL.Query().Get("x_cg_demo_api_key"))
			return okResponse(`{}`), nil
		}).
		Times(1)

	client := coingecko.NewClient("test-key", coingecko.WithHTTPClient(httpClient))

	// Act: call SimplePrice.
	_, err := client.SimplePrice(t.Context(), []string{"ethereum"})
	require.NoError(t, err)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Arrange: define a base url
	baseURL := "http://localhost:8080"

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return okResponse(`{}`), nil
		}).
		Times(1)

	// Arrange: create a new client.
	client := coingecko.NewClient("", coingecko.WithHTTPClient(httpClient), coingecko.WithBaseURL(baseURL))

	// Act: call SimplePrice with the overridden base URL.
	_, err := client.SimplePrice(t.Context(), []string{"bitcoin"})
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			return okResponse(`{}`), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom header.
	client := coingecko.NewClient("", coingecko.WithHTTPClient(httpClient), coingecko.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))

	// Act: call SimplePrice with the custom header.
	_, err := client.SimplePrice(t.Context(), []string{"bitcoin"})
	require.NoError(t, err)
}
