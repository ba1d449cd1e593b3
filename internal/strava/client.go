package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	// Refresh the access token when it is within 30s of expiry.
	tokenExpiryMargin = 30
)

// Credentials holds the refresh-token flow inputs.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Activity is the subset of a Strava summary activity the reconciler
// needs for duplicate detection.
type Activity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SportType   string    `json:"sport_type"`
	StartDate   time.Time `json:"start_date"`
	ElapsedTime int       `json:"elapsed_time"` // seconds
	StartLatLng []float64 `json:"start_latlng"`
}

// UploadPayload carries the form fields of a POST /uploads request.
type UploadPayload struct {
	DataType    string
	ExternalID  string
	Name        string
	SportType   string
	Description string
	Trainer     bool
	Commute     bool
}

// UploadStatus is the response body of the uploads endpoints.
type UploadStatus struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	ActivityID int64  `json:"activity_id"`
}

// Client talks to the Strava v3 API. A single access token is held and
// refreshed on expiry; the client is meant for sequential use by one
// batch run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenURL   string
	creds      Credentials

	accessToken string
	expiresAt   int64 // unix seconds

	maxAttempts  int
	retryDelay   time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(creds Credentials) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		creds:        creds,
		maxAttempts:  4,
		retryDelay:   time.Second,
		pollInterval: 5 * time.Second,
		pollTimeout:  3 * time.Minute,
	}
}

// Authenticate forces a token refresh. Upload and list calls refresh
// lazily, so calling this up front only serves to fail fast on bad
// credentials.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
	}

	log.Println("Authenticating with Strava (refresh-token flow)")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Reason: "building token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &AuthError{Reason: fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, body)}
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return &AuthError{Reason: "decoding token response", Err: err}
	}

	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		// Strava may rotate the refresh token.
		c.creds.RefreshToken = token.RefreshToken
	}
	c.expiresAt = token.ExpiresAt

	ttl := time.Until(time.Unix(c.expiresAt, 0))
	log.Printf("Authentication OK - token valid for %.1f min", ttl.Minutes())
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.accessToken != "" && time.Now().Unix() < c.expiresAt-tokenExpiryMargin {
		return nil
	}
	return c.Authenticate(ctx)
}

// do runs an authenticated request, refreshing the token on a 401 and
// retrying transient failures (network errors, 429, 5xx) with growing
// delays. The build function is called once per attempt so request
// bodies can be re-read.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	reauthed := false

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			log.Printf("Retrying in %s (attempt %d/%d)", delay, attempt+1, c.maxAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.ensureToken(ctx); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &TransientError{Err: err}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if reauthed {
				return nil, &AuthError{Reason: "access token rejected after refresh"}
			}
			reauthed = true
			c.accessToken = "" // force a refresh on the next attempt
			continue
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &TransientError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
			continue
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &UploadError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
		}

		return resp, nil
	}

	return nil, lastErr
}

// ListActivities fetches all athlete activities, paging until Strava
// returns an empty page.
func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	log.Println("Fetching all athlete activities")

	var out []Activity
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/athlete/activities?page=%d&per_page=100", c.baseURL, page)
		resp, err := c.do(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		})
		if err != nil {
			return nil, err
		}

		var batch []Activity
		err = json.NewDecoder(resp.Body).Decode(&batch)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding activities page %d: %w", page, err)
		}

		if len(batch) == 0 {
			break
		}
		log.Printf("Fetched page %d (%d activities)", page, len(batch))
		out = append(out, batch...)
	}

	log.Printf("Total activities fetched: %d", len(out))
	return out, nil
}

// Upload submits one track file to POST /uploads. The returned status
// carries the upload id to poll; Strava processes uploads
// asynchronously.
func (c *Client) Upload(ctx context.Context, payload UploadPayload, filename string, file []byte) (*UploadStatus, error) {
	body, contentType, err := encodeUploadBody(payload, filename, file)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + "/uploads"
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status UploadStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if status.Error != "" {
		return nil, &UploadError{Reason: status.Error}
	}

	log.Printf("Upload accepted - upload_id=%d", status.ID)
	return &status, nil
}

// PollUpload polls GET /uploads/{id} until the upload becomes an
// activity or fails. Returns the new activity id.
func (c *Client) PollUpload(ctx context.Context, uploadID int64) (int64, error) {
	u := fmt.Sprintf("%s/uploads/%d", c.baseURL, uploadID)
	deadline := time.Now().Add(c.pollTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return 0, ctx.Err()
		}

		resp, err := c.do(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		})
		if err != nil {
			return 0, err
		}

		var status UploadStatus
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return 0, fmt.Errorf("decoding upload status: %w", err)
		}

		switch {
		case status.Status == "Your activity is ready.":
			log.Printf("Upload %d processed - activity_id=%d", uploadID, status.ActivityID)
			return status.ActivityID, nil
		case strings.HasPrefix(status.Status, "There was an error"):
			reason := status.Error
			if reason == "" {
				reason = status.Status
			}
			return 0, &UploadError{Reason: reason}
		}
	}

	return 0, &UploadError{Reason: fmt.Sprintf("timed out waiting for upload %d to finish", uploadID)}
}

func encodeUploadBody(payload UploadPayload, filename string, file []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"data_type":   payload.DataType,
		"external_id": payload.ExternalID,
		"name":        payload.Name,
		"sport_type":  payload.SportType,
		"description": payload.Description,
		"trainer":     boolField(payload.Trainer),
		"commute":     boolField(payload.Commute),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(file); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
