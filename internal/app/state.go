package app

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Decision is the outcome of the acceptance policy for an inbound offer.
type Decision bool

const (
	Accepted Decision = true
	Rejected Decision = false
)

var ErrRequestExists = errors.New("invalid state: request already exists")

// RequestState holds the channels that carry one signaling exchange from
// offer to transfer completion.
type RequestState struct {
	Offer         webrtc.SessionDescription
	DecisionChan  chan Decision
	AnswerChan    chan webrtc.SessionDescription
	CandidateChan chan webrtc.ICECandidateInit
	TransferDone  chan struct{}
}

// StateManager manages the lifecycle of a single active transfer request in
// a concurrent-safe manner. The receiver processes one request at a time.
type StateManager struct {
	mu    sync.Mutex
	state *RequestState
}

func NewStateManager() *StateManager {
	return &StateManager{}
}

// CreateRequest initializes the state for a new inbound offer and returns
// the channel on which the acceptance decision will arrive.
func (m *StateManager) CreateRequest(offer webrtc.SessionDescription) (<-chan Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		return nil, ErrRequestExists
	}
	m.state = &RequestState{
		Offer:         offer,
		DecisionChan:  make(chan Decision, 1),
		AnswerChan:    make(chan webrtc.SessionDescription, 1),
		CandidateChan: make(chan webrtc.ICECandidateInit, 10),
		TransferDone:  make(chan struct{}),
	}
	return m.state.DecisionChan, nil
}

// GetOffer retrieves the currently stored offer.
func (m *StateManager) GetOffer() webrtc.SessionDescription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return webrtc.SessionDescription{}
	}
	return m.state.Offer
}

// SetDecision records the acceptance decision and delivers it to the
// waiting handler.
func (m *StateManager) SetDecision(decision Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.DecisionChan != nil {
		m.state.DecisionChan <- decision
		close(m.state.DecisionChan)
		m.state.DecisionChan = nil
	}
}

// SetAnswer stores the generated answer from the WebRTC peer.
func (m *StateManager) SetAnswer(answer webrtc.SessionDescription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.AnswerChan != nil {
		m.state.AnswerChan <- answer
		close(m.state.AnswerChan)
		m.state.AnswerChan = nil
	}
}

// GetAnswerChan returns the channel from which the answer can be read.
func (m *StateManager) GetAnswerChan() <-chan webrtc.SessionDescription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil || m.state.AnswerChan == nil {
		ch := make(chan webrtc.SessionDescription)
		close(ch)
		return ch
	}
	return m.state.AnswerChan
}

// SetCandidate sends a new local ICE candidate to the listening handler.
func (m *StateManager) SetCandidate(candidate webrtc.ICECandidateInit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.CandidateChan != nil {
		select {
		case m.state.CandidateChan <- candidate:
		default:
		}
	}
}

// CloseCandidateChan closes the candidate channel to signal the end of
// gathering.
func (m *StateManager) CloseCandidateChan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.CandidateChan != nil {
		close(m.state.CandidateChan)
		m.state.CandidateChan = nil
	}
}

// GetCandidateChan returns the channel from which ICE candidates can be read.
func (m *StateManager) GetCandidateChan() <-chan webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil || m.state.CandidateChan == nil {
		ch := make(chan webrtc.ICECandidateInit)
		close(ch)
		return ch
	}
	return m.state.CandidateChan
}

// MarkTransferDone signals that the data transfer for the active request
// has finished, unblocking the serving handler.
func (m *StateManager) MarkTransferDone() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.TransferDone != nil {
		close(m.state.TransferDone)
		m.state.TransferDone = nil
	}
}

// CloseRequest tears down the state of the current request so the next
// offer can be served.
func (m *StateManager) CloseRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && m.state.TransferDone != nil {
		close(m.state.TransferDone)
	}
	m.state = nil
}

// WaitForTransferDone returns a channel that is closed once the transfer
// is complete.
func (m *StateManager) WaitForTransferDone() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil || m.state.TransferDone == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.state.TransferDone
}
