package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/david/contract-map/internal/config"
	"github.com/sirupsen/logrus"
)

// SAMClient queries the SAM.gov Get Opportunities v2 search endpoint.
type SAMClient struct {
	Client     *http.Client
	BaseURL    string
	APIKey     string
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration

	log *logrus.Entry
}

func NewSAMClient(cfg config.SAMConfig) *SAMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SAMClient{
		Client:     &http.Client{Timeout: timeout},
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Backoff:    500 * time.Millisecond,
		log:        logrus.WithField("component", "sam"),
	}
}

// samSearchResponse is the subset of the search response the pipeline reads.
type samSearchResponse struct {
	TotalRecords      int              `json:"totalRecords"`
	Limit             int              `json:"limit"`
	Offset            int              `json:"offset"`
	OpportunitiesData []RawOpportunity `json:"opportunitiesData"`
}

// Validate reports a missing API key as a configuration error.
func (s *SAMClient) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return configError("sam search", config.ErrMissingAPIKey)
	}
	return nil
}

// Search runs one query. A missing opportunitiesData field yields an empty
// slice. Non-2xx responses are returned as upstream errors carrying the
// status and body; 429 and 5xx are retried first.
func (s *SAMClient) Search(ctx context.Context, params SearchParams) ([]RawOpportunity, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("api_key", s.APIKey)
	q.Set("limit", strconv.Itoa(params.Limit))
	q.Set("postedFrom", FormatSAMDate(params.PostedFrom))
	q.Set("postedTo", FormatSAMDate(params.PostedTo))
	q.Set("ptype", "o,k")
	q.Set("active", "Yes")
	if params.State != "" {
		q.Set("state", params.State)
	}
	endpoint := s.BaseURL + "?" + q.Encode()

	log := s.logger().WithFields(logrus.Fields{"state": params.State, "limit": params.Limit})
	log.Debug("querying SAM.gov")

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.Backoff * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(s.Backoff/5) + 1))
			select {
			case <-ctx.Done():
				return nil, upstreamError("sam search", 0, "", ctx.Err())
			case <-time.After(backoff + jitter):
			}
		}

		records, retry, err := s.do(ctx, endpoint)
		if err == nil {
			log.WithField("count", len(records)).Info("fetched opportunities")
			return records, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("retrying SAM.gov query")
	}
	return nil, lastErr
}

func (s *SAMClient) do(ctx context.Context, endpoint string) ([]RawOpportunity, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, upstreamError("sam search", 0, "", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, isTimeout(err) && ctx.Err() == nil, upstreamError("sam search", 0, "", redactKey(err, s.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, shouldRetry(resp.StatusCode), upstreamError("sam search", resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var payload samSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, upstreamError("sam search", resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	if payload.OpportunitiesData == nil {
		return []RawOpportunity{}, false, nil
	}
	return payload.OpportunitiesData, false, nil
}

func (s *SAMClient) logger() *logrus.Entry {
	if s.log == nil {
		s.log = logrus.WithField("component", "sam")
	}
	return s.log
}

func shouldRetry(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// redactKey keeps the API key out of errors that embed the request URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

// FormatSAMDate renders the MM/DD/YYYY form the search endpoint expects.
func FormatSAMDate(t time.Time) string {
	return t.Format("01/02/2006")
}
