package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Info is the geolocation/risk metadata for a single address, passed
// through from the external lookup service.
type Info struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Proxy   bool   `json:"proxy"`
	Hosting bool   `json:"hosting"`
}

// Client queries an ip-api-compatible endpoint. The lookup itself is
// an opaque external service; this is only the thin HTTP client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

const DefaultBaseURL = "http://ip-api.com"

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// apiPayload mirrors the wire format of the external service.
type apiPayload struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
	ISP        string `json:"isp"`
	Proxy      bool   `json:"proxy"`
	Hosting    bool   `json:"hosting"`
	Query      string `json:"query"`
}

// Lookup resolves ip. An empty ip asks the service about the caller's
// own address.
func (c *Client) Lookup(ctx context.Context, ip string) (*Info, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country,regionName,city,isp,proxy,hosting,query", c.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("geoip service returned %s", resp.Status)
	}

	var p apiPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode geoip response: %w", err)
	}
	if p.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed: %s", p.Message)
	}

	return &Info{
		IP:      p.Query,
		Country: p.Country,
		Region:  p.RegionName,
		City:    p.City,
		ISP:     p.ISP,
		Proxy:   p.Proxy,
		Hosting: p.Hosting,
	}, nil
}
