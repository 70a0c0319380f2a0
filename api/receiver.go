package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/internal/app"
	"github.com/rhp30760/sharestream-local/pkg/concurrency"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// AcceptancePolicy decides whether an inbound offer for the given files is
// accepted. It runs once per offer, before any data channel exists.
type AcceptancePolicy func(files []fileInfo.FileDescriptor) app.Decision

// AcceptAll accepts every inbound offer.
func AcceptAll(files []fileInfo.FileDescriptor) app.Decision {
	return app.Accepted
}

// API is the receiver's signaling endpoint.
type API struct {
	server *ReceiverGuard
	mux    *http.ServeMux
}

// NewAPI creates and initializes a new API instance. onRemoteCandidate
// receives ICE candidates posted by the sender; nil drops them.
func NewAPI(policy AcceptancePolicy, stateManager *app.StateManager, onRemoteCandidate func(webrtc.ICECandidateInit)) *API {
	api := &API{
		server: NewReceiverGuard(policy, stateManager, onRemoteCandidate),
		mux:    http.NewServeMux(),
	}
	api.registerRoutes()
	return api
}

// ServeHTTP allows the API struct to satisfy the http.Handler interface.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) registerRoutes() {
	askHandlerWithMiddleware := a.server.ConcurrencyControlMiddleware(http.HandlerFunc(a.server.AskHandler))

	a.mux.Handle("POST /ask", askHandlerWithMiddleware)
	a.mux.Handle("POST /candidate", http.HandlerFunc(a.server.CandidateHandler))
}

// ReceiverGuard manages the signaling server's state and core logic.
type ReceiverGuard struct {
	guard             *concurrency.ConcurrencyGuard
	policy            AcceptancePolicy
	stateManager      *app.StateManager
	onRemoteCandidate func(webrtc.ICECandidateInit)
}

func NewReceiverGuard(policy AcceptancePolicy, stateManager *app.StateManager, onRemoteCandidate func(webrtc.ICECandidateInit)) *ReceiverGuard {
	if policy == nil {
		policy = AcceptAll
	}
	return &ReceiverGuard{
		guard:             concurrency.NewConcurrencyGuard(),
		policy:            policy,
		stateManager:      stateManager,
		onRemoteCandidate: onRemoteCandidate,
	}
}

// ConcurrencyControlMiddleware ensures only one transfer is served at a
// time; concurrent offers get 503.
func (s *ReceiverGuard) ConcurrencyControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		task := func() error {
			defer s.stateManager.CloseRequest()
			next.ServeHTTP(w, r)
			// Hold the slot until the data transfer itself is finished.
			<-s.stateManager.WaitForTransferDone()
			return nil
		}

		err := s.guard.Execute(task)
		if errors.Is(err, concurrency.ErrBusy) {
			slog.Warn("Offer rejected, a transfer is already in progress")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"error": concurrency.ErrBusy.Error(),
			})
		}
	})
}

// AskPayload is the request body for the /ask endpoint.
type AskPayload struct {
	Files []fileInfo.FileDescriptor `json:"files"`
	Offer webrtc.SessionDescription `json:"offer"`
}

// AskHandler serves one inbound offer: it consults the acceptance policy,
// then streams the answer and ICE candidates back as SSE events.
func (s *ReceiverGuard) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	slog.Info("Offer received", "files", len(req.Files), "peer", r.Header.Get(serviceIDHeader))

	decisionChan, err := s.stateManager.CreateRequest(req.Offer)
	if err != nil {
		http.Error(w, "Failed to create request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	go s.stateManager.SetDecision(s.policy(req.Files))

	decision := <-decisionChan
	if decision == app.Rejected {
		slog.Info("Offer rejected by policy")
		s.sendRejection(w, flusher)
		// No data will flow; release the transfer slot right away.
		s.stateManager.MarkTransferDone()
		return
	}

	slog.Info("Offer accepted")
	if err := s.sendAnswer(w, flusher); err != nil {
		slog.Error("Failed to send answer", "error", err)
		// The response has started; an http.Error would corrupt the stream.
		s.stateManager.MarkTransferDone()
		return
	}

	if err := s.streamCandidates(w, flusher); err != nil {
		slog.Error("Failed to stream candidates", "error", err)
	}
}

func (s *ReceiverGuard) sendRejection(w http.ResponseWriter, flusher http.Flusher) {
	response := map[string]string{"status": "rejected"}
	jsonResponse, _ := json.Marshal(response)
	fmt.Fprintf(w, "event: rejection\ndata: %s\n\n", jsonResponse)
	flusher.Flush()
}

// sendAnswer waits for the WebRTC answer and sends it as an SSE event.
func (s *ReceiverGuard) sendAnswer(w http.ResponseWriter, flusher http.Flusher) error {
	answerChan := s.stateManager.GetAnswerChan()
	answer, ok := <-answerChan
	if !ok {
		return fmt.Errorf("answer channel was closed unexpectedly")
	}

	response := map[string]webrtc.SessionDescription{"answer": answer}
	jsonResponse, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	fmt.Fprintf(w, "event: answer\ndata: %s\n\n", jsonResponse)
	flusher.Flush()
	return nil
}

// streamCandidates forwards locally gathered ICE candidates as SSE events
// until gathering finishes.
func (s *ReceiverGuard) streamCandidates(w http.ResponseWriter, flusher http.Flusher) error {
	candidateChan := s.stateManager.GetCandidateChan()

	for candidate := range candidateChan {
		response := map[string]webrtc.ICECandidateInit{"candidate": candidate}
		jsonResponse, err := json.Marshal(response)
		if err != nil {
			slog.Error("Failed to marshal candidate, skipping", "error", err)
			continue
		}
		fmt.Fprintf(w, "event: candidate\ndata: %s\n\n", jsonResponse)
		flusher.Flush()
	}

	fmt.Fprintf(w, "event: candidates_done\ndata: {}\n\n")
	flusher.Flush()
	return nil
}

// CandidateHandler ingests ICE candidates posted by the sender.
func (s *ReceiverGuard) CandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req webrtc.ICECandidateInit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid candidate payload", http.StatusBadRequest)
		return
	}

	if s.onRemoteCandidate != nil {
		s.onRemoteCandidate(req)
	}
	w.WriteHeader(http.StatusOK)
}
