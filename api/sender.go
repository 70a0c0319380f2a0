package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
)

const serviceIDHeader = "X-Service-ID"

// serviceIDInjector is a custom http.RoundTripper that injects the sender's
// service ID into each request.
type serviceIDInjector struct {
	serviceID string
	next      http.RoundTripper
}

func (t *serviceIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(serviceIDHeader, t.serviceID)
	return t.next.RoundTrip(req)
}

// Client is a stateless HTTP client for communicating with the receiver's
// signaling API.
type Client struct {
	HttpClient  *http.Client
	receiverURL string
}

// NewClient creates a new API client, configured to automatically inject
// the provided serviceID.
func NewClient(serviceID string) *Client {
	transport := &serviceIDInjector{
		serviceID: serviceID,
		next:      http.DefaultTransport,
	}

	return &Client{
		HttpClient: &http.Client{
			// The /ask response is a long-lived SSE stream; only connection
			// setup gets a deadline, via the request context.
			Transport: transport,
		},
	}
}

func (c *Client) SetReceiverURL(receiverURL string) {
	c.receiverURL = receiverURL
}

func (c *Client) ReceiverURL() string {
	return c.receiverURL
}

// SendICECandidateRequest posts one locally gathered candidate to the
// receiver's /candidate endpoint.
func (c *Client) SendICECandidateRequest(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	if c.receiverURL == "" {
		return fmt.Errorf("receiver URL is not configured")
	}

	jsonData, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.receiverURL+"/candidate", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create candidate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send candidate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("candidate responded with non-OK status: %s", resp.Status)
	}

	return nil
}
