package marketdata_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"nepse_dashboard/models"
	"nepse_dashboard/services/marketdata"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_RequiresTimeout(t *testing.T) {
	t.Parallel()

	_, err := marketdata.NewClient(0)
	require.Error(t, err)

	client, err := marketdata.NewClient(time.Second)
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	var gotSymbol, gotAccept string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"LTP": 105, "High": 100, "Previous Close": 100, "Volume": 60000, "Symbol": "SSHL"}`)
	})

	client, err := marketdata.NewClient(time.Second, marketdata.WithBaseURL(srv.URL+"/api"))
	require.NoError(t, err)

	q, err := client.Fetch(t.Context(), "SSHL")
	require.NoError(t, err)
	assert.Equal(t, "SSHL", gotSymbol)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, models.RawQuote{LastTradedPrice: 105, DayHigh: 100, PreviousClose: 100, Volume: 60000}, q)
}

func TestFetch_SymbolIsQueryEscaped(t *testing.T) {
	t.Parallel()

	var raw string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		_, _ = io.WriteString(w, `{}`)
	})

	client, err := marketdata.NewClient(time.Second, marketdata.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Fetch(t.Context(), "A&B C")
	require.NoError(t, err)
	assert.Equal(t, "symbol=A%26B+C", raw)
}

func TestFetch_MissingFieldsDefaultToZero(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	client, err := marketdata.NewClient(time.Second, marketdata.WithBaseURL(srv.URL))
	require.NoError(t, err)

	q, err := client.Fetch(t.Context(), "NABIL")
	require.NoError(t, err)
	assert.Zero(t, q.LastTradedPrice)
	assert.Zero(t, q.DayHigh)
	assert.Zero(t, q.PreviousClose)
	assert.Zero(t, q.Volume)
	assert.Equal(t, []string{models.FieldLTP, models.FieldHigh, models.FieldPreviousClose, models.FieldVolume}, q.Missing)
}

func TestFetch_Non2xxIsFetchError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	client, err := marketdata.NewClient(time.Second, marketdata.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Fetch(t.Context(), "HIDCL")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, marketdata.OpStatus, fe.Op)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, "HIDCL", fe.Symbol)
}

func TestFetch_MalformedJSONIsFetchError(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"truncated": `{"LTP": 1`,
		"html":      `<html>rate limited</html>`,
		"array":     `[1, 2, 3]`,
		"null":      `null`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			client, err := marketdata.NewClient(time.Second, marketdata.WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = client.Fetch(t.Context(), "SSHL")
			var fe *marketdata.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, marketdata.OpDecode, fe.Op)
		})
	}
}

func TestFetch_TimeoutIsFetchError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client, err := marketdata.NewClient(50*time.Millisecond, marketdata.WithBaseURL(srv.URL))
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(t.Context(), "NABIL")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, marketdata.OpRequest, fe.Op)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_TransportErrorViaMock(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	boom := errors.New("connection refused")

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "nepse-test", req.Header.Get("User-Agent"))
			require.True(t, strings.HasPrefix(req.URL.String(), "http://quotes.local/api?"), req.URL.String())
			_, hasDeadline := req.Context().Deadline()
			require.True(t, hasDeadline, "request must carry a deadline")
			return nil, boom
		}).
		Times(1)

	client, err := marketdata.NewClient(time.Second,
		marketdata.WithBaseURL("http://quotes.local/api"),
		marketdata.WithHTTPClient(httpClient),
		marketdata.WithUserAgent("nepse-test"),
	)
	require.NoError(t, err)

	_, err = client.Fetch(t.Context(), "SSHL")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, boom)
}

func TestFetch_OversizedBodyIsFetchError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(strings.Repeat(" ", 1<<20+10))),
		}, nil)

	client, err := marketdata.NewClient(time.Second, marketdata.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.Fetch(t.Context(), "SSHL")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, marketdata.OpRead, fe.Op)
}
