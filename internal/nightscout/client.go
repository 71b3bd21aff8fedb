// Package nightscout provides a client for interacting with the Nightscout API
package nightscout

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// ServerStatus is the /api/v1/status response.
type ServerStatus struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIEnabled bool   `json:"apiEnabled"`
}

// entryPayload is the wire format for one SGV entry upload.
type entryPayload struct {
	Type       string `json:"type"`
	SGV        int    `json:"sgv"`
	Direction  string `json:"direction"`
	Trend      int    `json:"trend"`
	Date       int64  `json:"date"`
	DateString string `json:"dateString"`
	Device     string `json:"device"`
}

// deviceStatusPayload carries the pump fields a reading may have been
// enriched with.
type deviceStatusPayload struct {
	Device    string      `json:"device"`
	CreatedAt string      `json:"created_at"`
	Pump      pumpStatus  `json:"pump"`
	Uploader  *battStatus `json:"uploader,omitempty"`
}

type pumpStatus struct {
	Clock     string      `json:"clock"`
	Reservoir *float64    `json:"reservoir,omitempty"`
	IOB       *iobStatus  `json:"iob,omitempty"`
	Battery   *battStatus `json:"battery,omitempty"`
}

type iobStatus struct {
	BolusIOB float64 `json:"bolusiob"`
}

type battStatus struct {
	Percent int `json:"percent"`
}

// Client handles communication with the Nightscout API
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a new Nightscout client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(method, endpoint string, params url.Values, body any) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, fullURL, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus() (*ServerStatus, error) {
	req, err := c.buildRequest("GET", "/api/v1/status", nil, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return &status, nil
}

// TestConnection tests if the connection to Nightscout works
func (c *Client) TestConnection() error {
	_, err := c.GetStatus()
	return err
}

// UploadEntry posts one glucose reading as an SGV entry.
func (c *Client) UploadEntry(r *models.GlucoseReading) error {
	entry := entryPayload{
		Type:       "sgv",
		SGV:        r.ValueMgdl(),
		Direction:  string(r.Trend),
		Trend:      r.Trend.NightscoutTrend(),
		Date:       r.CapturedAt.UnixMilli(),
		DateString: r.CapturedAt.UTC().Format(time.RFC3339),
		Device:     r.Device,
	}

	req, err := c.buildRequest("POST", "/api/v1/entries", nil, []entryPayload{entry})
	if err != nil {
		return err
	}

	_, err = c.doRequest(req)
	return err
}

// UploadDeviceStatus posts the pump fields of a reading. Readings without any
// pump enrichment are skipped.
func (c *Client) UploadDeviceStatus(r *models.GlucoseReading) error {
	if r.Reservoir == nil && r.PumpBattery == nil && r.ActiveInsulin == nil {
		return nil
	}

	clock := r.CapturedAt.UTC().Format(time.RFC3339)
	status := deviceStatusPayload{
		Device:    r.Device,
		CreatedAt: clock,
		Pump: pumpStatus{
			Clock:     clock,
			Reservoir: r.Reservoir,
		},
	}
	if r.ActiveInsulin != nil {
		status.Pump.IOB = &iobStatus{BolusIOB: *r.ActiveInsulin}
	}
	if r.PumpBattery != nil {
		status.Pump.Battery = &battStatus{Percent: *r.PumpBattery}
	}

	req, err := c.buildRequest("POST", "/api/v1/devicestatus", nil, status)
	if err != nil {
		return err
	}

	_, err = c.doRequest(req)
	return err
}

// UploadTreatment posts one treatment record.
func (c *Client) UploadTreatment(t *models.Treatment) error {
	req, err := c.buildRequest("POST", "/api/v1/treatments", nil, []*models.Treatment{t})
	if err != nil {
		return err
	}

	_, err = c.doRequest(req)
	return err
}

// LatestTreatment retrieves the most recent treatment of the given event
// type, or nil when the server has none.
func (c *Client) LatestTreatment(eventType string) (*models.Treatment, error) {
	params := url.Values{}
	params.Set("find[eventType]", eventType)
	params.Set("count", "1")

	req, err := c.buildRequest("GET", "/api/v1/treatments", params, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var treatments []models.Treatment
	if err := json.Unmarshal(body, &treatments); err != nil {
		return nil, fmt.Errorf("parsing treatments: %w", err)
	}
	if len(treatments) == 0 {
		return nil, nil
	}

	return &treatments[0], nil
}
