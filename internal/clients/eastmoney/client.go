// Package eastmoney fetches fund valuations from the Eastmoney (Tiantian) public endpoints.
package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
)

const (
	defaultEstimateURL = "https://fundgz.1234567.com.cn"
	defaultHistoryURL  = "https://api.fund.eastmoney.com"
	referer            = "https://fund.eastmoney.com/"
	userAgent          = "Mozilla/5.0 (compatible; fundledger)"
)

var (
	jsonpPrefix = []byte("jsonpgz(")
	jsonpSuffix = []byte(");")
)

// Client for the Eastmoney fund quote endpoints
type Client struct {
	estimateURL string
	historyURL  string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	loc         *time.Location
	log         zerolog.Logger
}

// NewClient creates a client. Quote timestamps are interpreted in loc.
func NewClient(cfg *config.QuoteConfig, loc *time.Location, log zerolog.Logger) *Client {
	c := &Client{
		estimateURL: defaultEstimateURL,
		historyURL:  defaultHistoryURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		loc:         loc,
		log:         log.With().Str("client", "eastmoney").Logger(),
	}
	if cfg != nil {
		if cfg.EstimateBaseURL != "" {
			c.estimateURL = cfg.EstimateBaseURL
		}
		if cfg.HistoryBaseURL != "" {
			c.historyURL = cfg.HistoryBaseURL
		}
		if cfg.Timeout > 0 {
			c.client.Timeout = cfg.Timeout
		}
		if cfg.MaxAttempts > 0 {
			c.maxAttempts = cfg.MaxAttempts
		}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

// estimatePayload is the JSON inside the jsonpgz(...) wrapper
type estimatePayload struct {
	FundCode      string `json:"fundcode"`
	Name          string `json:"name"`
	LastOfficial  string `json:"dwjz"`
	LastDate      string `json:"jzrq"`
	Estimate      string `json:"gsz"`
	ChangePercent string `json:"gszzl"`
	EstimateTime  string `json:"gztime"`
}

type historyResponse struct {
	Data     json.RawMessage `json:"Data"`
	ErrCode  int             `json:"ErrCode"`
	ErrMsg   *string         `json:"ErrMsg"`
	TotalCnt int             `json:"TotalCount"`
}

type historyData struct {
	FundName string         `json:"FundName"`
	List     []historyEntry `json:"LSJZList"`
}

type historyEntry struct {
	Date          string `json:"FSRQ"`
	Value         string `json:"DWJZ"`
	Accumulated   string `json:"LJJZ"`
	ChangePercent string `json:"JZZZL"`
}

// GetIntradayEstimate returns today's intraday estimate with the last official print attached
func (c *Client) GetIntradayEstimate(ctx context.Context, fundCode string) (domain.Quote, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/js/%s.js", c.estimateURL, url.PathEscape(fundCode)))
	if err != nil {
		return domain.Quote{}, fmt.Errorf("estimate %s: %w", fundCode, err)
	}

	payload, err := parseJSONP(body)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("estimate %s: %w", fundCode, err)
	}

	q := domain.Quote{FundCode: fundCode, Kind: domain.ValuationEstimate}
	if q.Value, err = decimal.NewFromString(payload.Estimate); err != nil {
		return domain.Quote{}, fmt.Errorf("estimate %s: bad gsz %q: %w", fundCode, payload.Estimate, err)
	}
	if q.AsOfTime, err = domain.ParseDateTime(payload.EstimateTime, c.loc); err != nil {
		return domain.Quote{}, fmt.Errorf("estimate %s: %w", fundCode, err)
	}
	q.AsOfDate = domain.DateOf(q.AsOfTime)

	if payload.LastOfficial != "" && payload.LastDate != "" {
		last, lerr := decimal.NewFromString(payload.LastOfficial)
		lastDate, derr := domain.ParseDate(payload.LastDate, c.loc)
		if lerr == nil && derr == nil {
			q.LastOfficialValue = last
			q.LastOfficialDate = lastDate
		} else {
			c.log.Warn().Str("fund_code", fundCode).Msg("Ignoring malformed last official print")
		}
	}

	c.log.Debug().
		Str("fund_code", fundCode).
		Str("estimate", q.Value.String()).
		Str("change_percent", payload.ChangePercent).
		Msg("Fetched estimate")
	return q, nil
}

// GetOfficialValuation returns the most recent published valuation
func (c *Client) GetOfficialValuation(ctx context.Context, fundCode string) (domain.Quote, error) {
	entries, err := c.history(ctx, fundCode, 1)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("official valuation %s: %w", fundCode, err)
	}
	if len(entries) == 0 {
		return domain.Quote{}, fmt.Errorf("official valuation %s: %w", fundCode, domain.ErrNotFound)
	}

	p, err := c.toPricePoint(entries[0])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("official valuation %s: %w", fundCode, err)
	}
	return domain.Quote{
		FundCode: fundCode,
		Kind:     domain.ValuationOfficial,
		Value:    p.Value,
		AsOfDate: p.Date,
	}, nil
}

// GetHistory returns up to limit official valuations, oldest first
func (c *Client) GetHistory(ctx context.Context, fundCode string, limit int) ([]domain.PricePoint, error) {
	entries, err := c.history(ctx, fundCode, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", fundCode, err)
	}

	points := make([]domain.PricePoint, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		p, err := c.toPricePoint(entries[i])
		if err != nil {
			c.log.Debug().Err(err).Str("fund_code", fundCode).Msg("Skipping history entry")
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func (c *Client) history(ctx context.Context, fundCode string, limit int) ([]historyEntry, error) {
	params := url.Values{}
	params.Set("fundCode", fundCode)
	params.Set("pageIndex", "1")
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("startDate", "")
	params.Set("endDate", "")
	params.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	body, err := c.get(ctx, c.historyURL+"/f10/lsjz?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.ErrCode != 0 {
		msg := ""
		if resp.ErrMsg != nil {
			msg = *resp.ErrMsg
		}
		return nil, fmt.Errorf("API error %d: %s", resp.ErrCode, msg)
	}

	var data historyData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse history data: %w", err)
	}
	return data.List, nil
}

func (c *Client) toPricePoint(e historyEntry) (domain.PricePoint, error) {
	value, err := decimal.NewFromString(e.Value)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("bad DWJZ %q: %w", e.Value, err)
	}
	date, err := domain.ParseDate(e.Date, c.loc)
	if err != nil {
		return domain.PricePoint{}, err
	}
	return domain.PricePoint{Date: date, Value: value}, nil
}

// statusError is a non-2xx response
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// get fetches a URL, retrying transport errors and 5xx responses with linear backoff
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}

		body, err := c.do(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("Quote request failed")
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func parseJSONP(body []byte) (estimatePayload, error) {
	var p estimatePayload
	text := bytes.TrimSpace(body)
	if !bytes.HasPrefix(text, jsonpPrefix) {
		return p, fmt.Errorf("unexpected estimate response %.40q", text)
	}
	text = bytes.TrimPrefix(text, jsonpPrefix)
	text = bytes.TrimSuffix(text, jsonpSuffix)
	text = bytes.TrimSuffix(text, []byte(")"))
	if len(bytes.TrimSpace(text)) == 0 {
		return p, fmt.Errorf("no estimate published: %w", domain.ErrNotFound)
	}
	if err := json.Unmarshal(text, &p); err != nil {
		return p, fmt.Errorf("failed to parse estimate: %w", err)
	}
	if p.Estimate == "" {
		return p, fmt.Errorf("no estimate published: %w", domain.ErrNotFound)
	}
	return p, nil
}
