package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// ErrRejected is returned from WaitForAnswer when the receiver declines
// the offered files.
var ErrRejected = errors.New("transfer rejected by the receiver")

// APISignaler is the sender-side signaling client. It posts the offer to
// the receiver's /ask endpoint and consumes the SSE stream that comes back.
type APISignaler struct {
	apiClient           *Client
	ctx                 context.Context
	addIceCandidateFunc func(webrtc.ICECandidateInit) error
	answerChan          chan *webrtc.SessionDescription
	errChan             chan error
}

// NewAPISignaler creates a new signaler. The callback passes ICE candidates
// received from the receiver back to the sender's PeerConnection.
func NewAPISignaler(
	ctx context.Context,
	apiClient *Client,
	addIceCandidateFunc func(webrtc.ICECandidateInit) error,
) *APISignaler {
	return &APISignaler{
		apiClient:           apiClient,
		ctx:                 ctx,
		addIceCandidateFunc: addIceCandidateFunc,
		answerChan:          make(chan *webrtc.SessionDescription, 1),
		errChan:             make(chan error, 1),
	}
}

// SendOffer posts the offer and file descriptors to the receiver and starts
// listening for the SSE event stream. This is the entry point that triggers
// the whole signaling exchange.
func (s *APISignaler) SendOffer(offer webrtc.SessionDescription, files []fileInfo.FileDescriptor) error {
	url := s.apiClient.receiverURL + "/ask"

	payload := AskPayload{
		Files: files,
		Offer: offer,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal offer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(s.ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create /ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.apiClient.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to /ask endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("/ask responded with non-OK status: %s", resp.Status)
	}

	// The body stays open for the lifetime of the exchange; the goroutine
	// owns it from here.
	go s.listenToSSEResponse(resp)

	return nil
}

func (s *APISignaler) listenToSSEResponse(resp *http.Response) {
	defer resp.Body.Close()
	scanner := bufio.NewScanner(resp.Body)
	var currentEvent string

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			s.routeEvent(currentEvent, data)
		}
	}

	if err := scanner.Err(); err != nil {
		s.errChan <- fmt.Errorf("error reading SSE stream: %w", err)
	}
}

func (s *APISignaler) routeEvent(event, data string) {
	switch event {
	case "answer":
		s.handleAnswerEvent(data)
	case "candidate":
		s.handleCandidateEvent(data)
	case "rejection":
		s.errChan <- ErrRejected
	case "candidates_done":
		slog.Info("Receiver has finished sending candidates")
	default:
		slog.Warn("Received unknown SSE event", "event", event)
	}
}

func (s *APISignaler) handleAnswerEvent(data string) {
	var respData struct {
		Answer webrtc.SessionDescription `json:"answer"`
	}
	if err := json.Unmarshal([]byte(data), &respData); err != nil {
		s.errChan <- fmt.Errorf("failed to unmarshal answer event: %w", err)
		return
	}
	s.answerChan <- &respData.Answer
}

func (s *APISignaler) handleCandidateEvent(data string) {
	var respData struct {
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal([]byte(data), &respData); err != nil {
		slog.Error("Failed to unmarshal candidate event", "error", err)
		return // One bad candidate must not kill the connection.
	}

	if err := s.addIceCandidateFunc(respData.Candidate); err != nil {
		slog.Warn("Failed to add ICE candidate", "error", err)
	}
}

// WaitForAnswer blocks until the answer arrives on the SSE stream or the
// context is cancelled.
func (s *APISignaler) WaitForAnswer(ctx context.Context) (*webrtc.SessionDescription, error) {
	select {
	case answer := <-s.answerChan:
		return answer, nil
	case err := <-s.errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendICECandidate delivers a locally gathered candidate to the receiver.
// Fire-and-forget; losing a candidate degrades connectivity, not correctness.
func (s *APISignaler) SendICECandidate(candidate webrtc.ICECandidateInit) {
	go func() {
		if err := s.apiClient.SendICECandidateRequest(s.ctx, candidate); err != nil {
			slog.Warn("Failed to deliver ICE candidate", "error", err)
		}
	}()
}
