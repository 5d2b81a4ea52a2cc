package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
)

func newTestClient(url string) *Client {
	c := NewClient(&config.QuoteConfig{
		EstimateBaseURL: url,
		HistoryBaseURL:  url,
		Timeout:         2 * time.Second,
		MaxAttempts:     3,
	}, time.UTC, zerolog.Nop())
	c.backoff = time.Millisecond
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil, nil, zerolog.Nop())

	assert.Equal(t, defaultEstimateURL, c.estimateURL)
	assert.Equal(t, defaultHistoryURL, c.historyURL)
	assert.Equal(t, 3, c.maxAttempts)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
}

func TestGetIntradayEstimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/js/050025.js", r.URL.Path)
		assert.Equal(t, referer, r.Header.Get("Referer"))
		fmt.Fprint(w, `jsonpgz({"fundcode":"050025","name":"S&P 500","jzrq":"2024-03-04","dwjz":"4.1020","gsz":"4.1234","gszzl":"0.52","gztime":"2024-03-05 14:30"});`)
	}))
	defer server.Close()

	q, err := newTestClient(server.URL).GetIntradayEstimate(context.Background(), "050025")
	require.NoError(t, err)

	assert.Equal(t, domain.ValuationEstimate, q.Kind)
	assert.Equal(t, "4.1234", q.Value.String())
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), q.AsOfTime)
	assert.Equal(t, "2024-03-05", domain.FormatDate(q.AsOfDate))
	assert.Equal(t, "4.102", q.LastOfficialValue.String())
	assert.Equal(t, "2024-03-04", domain.FormatDate(q.LastOfficialDate))
}

func TestGetIntradayEstimate_EmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "jsonpgz();")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIntradayEstimate(context.Background(), "000186")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetIntradayEstimate_UnexpectedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIntradayEstimate(context.Background(), "000186")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

const lsjzBody = `{"Data":{"LSJZList":[
{"FSRQ":"2024-03-05","DWJZ":"1.2300","LJJZ":"2.1","JZZZL":"0.5"},
{"FSRQ":"2024-03-04","DWJZ":"1.2200","LJJZ":"2.0","JZZZL":"-0.1"},
{"FSRQ":"2024-03-01","DWJZ":"","LJJZ":"","JZZZL":""},
{"FSRQ":"2024-02-29","DWJZ":"1.2500","LJJZ":"2.2","JZZZL":"0.0"}
],"FundName":"CSI 300"},"ErrCode":0,"ErrMsg":null,"TotalCount":4}`

func TestGetOfficialValuation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/f10/lsjz", r.URL.Path)
		assert.Equal(t, "000051", r.URL.Query().Get("fundCode"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, lsjzBody)
	}))
	defer server.Close()

	q, err := newTestClient(server.URL).GetOfficialValuation(context.Background(), "000051")
	require.NoError(t, err)

	assert.Equal(t, domain.ValuationOfficial, q.Kind)
	assert.Equal(t, "1.23", q.Value.String())
	assert.Equal(t, "2024-03-05", domain.FormatDate(q.AsOfDate))
}

func TestGetOfficialValuation_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Data":"","ErrCode":-999,"ErrMsg":"fund not found"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetOfficialValuation(context.Background(), "999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fund not found")
}

func TestGetOfficialValuation_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Data":{"LSJZList":[]},"ErrCode":0}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetOfficialValuation(context.Background(), "000051")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetHistory_OldestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "90", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, lsjzBody)
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).GetHistory(context.Background(), "000051", 90)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, "2024-02-29", domain.FormatDate(points[0].Date))
	assert.Equal(t, "2024-03-04", domain.FormatDate(points[1].Date))
	assert.Equal(t, "2024-03-05", domain.FormatDate(points[2].Date))
	assert.Equal(t, "1.25", points[0].Value.String())
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, lsjzBody)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetOfficialValuation(context.Background(), "000051")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetOfficialValuation(context.Background(), "000051")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIntradayEstimate(context.Background(), "000051")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
