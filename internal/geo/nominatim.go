package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoResults is returned when the geocoder answers with an empty list.
var ErrNoResults = errors.New("geocoder returned no results")

// Provider resolves a free-text address to a single point.
type Provider interface {
	Search(ctx context.Context, query string) (Coordinates, error)
}

// NominatimClient queries an OpenStreetMap Nominatim compatible /search endpoint.
type NominatimClient struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
}

func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		Client:    &http.Client{Timeout: timeout},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *NominatimClient) Search(ctx context.Context, query string) (Coordinates, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "us")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Coordinates{}, fmt.Errorf("geocoder returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Coordinates{}, ErrNoResults
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lat), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lon), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}
