// Package places wraps the Google Places API (New) Text Search
// endpoint used to discover businesses for a campaign.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"
	maxPageSize    = 20
)

// fieldMask lists everything the pipeline consumes per place.
const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.nationalPhoneNumber,places.internationalPhoneNumber,places.websiteUri," +
	"places.rating,places.userRatingCount,places.primaryTypeDisplayName," +
	"places.location,nextPageToken"

// Client performs Places API operations.
type Client interface {
	// TextSearch pages through results for the query until maxResults
	// places are collected or the API runs out of pages.
	TextSearch(ctx context.Context, query string, maxResults int) ([]Place, error)
}

// Place is one result from Text Search.
type Place struct {
	ID              string      `json:"id"`
	DisplayName     DisplayName `json:"displayName"`
	Address         string      `json:"formattedAddress"`
	NationalPhone   string      `json:"nationalPhoneNumber"`
	InternationalP  string      `json:"internationalPhoneNumber"`
	WebsiteURI      string      `json:"websiteUri"`
	Rating          float64     `json:"rating"`
	UserRatingCount int         `json:"userRatingCount"`
	PrimaryType     DisplayName `json:"primaryTypeDisplayName"`
	Location        LatLng      `json:"location"`
}

// DisplayName holds a localized display string.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a geographic point.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// APIError is a non-2xx response from the Places API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("places: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

type textSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string, maxResults int) ([]Place, error) {
	if maxResults <= 0 {
		maxResults = maxPageSize
	}

	var places []Place
	pageToken := ""
	for len(places) < maxResults {
		pageSize := maxResults - len(places)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		page, err := c.searchPage(ctx, textSearchRequest{
			TextQuery: query,
			PageSize:  pageSize,
			PageToken: pageToken,
		})
		if err != nil {
			return nil, err
		}

		places = append(places, page.Places...)
		if page.NextPageToken == "" || len(page.Places) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(places) > maxResults {
		places = places[:maxResults]
	}
	return places, nil
}

func (c *httpClient) searchPage(ctx context.Context, req textSearchRequest) (*textSearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result textSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return &result, nil
}
