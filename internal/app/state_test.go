package app

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManager_SingleActiveRequest(t *testing.T) {
	m := NewStateManager()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}
	_, err := m.CreateRequest(offer)
	require.NoError(t, err)
	assert.Equal(t, "offer-sdp", m.GetOffer().SDP)

	_, err = m.CreateRequest(offer)
	assert.ErrorIs(t, err, ErrRequestExists)

	m.CloseRequest()
	_, err = m.CreateRequest(offer)
	require.NoError(t, err, "A closed request frees the slot")
}

func TestStateManager_DecisionDelivery(t *testing.T) {
	m := NewStateManager()
	decisionChan, err := m.CreateRequest(webrtc.SessionDescription{})
	require.NoError(t, err)

	m.SetDecision(Accepted)
	assert.Equal(t, Accepted, <-decisionChan)

	// A second SetDecision is a no-op, not a double close.
	m.SetDecision(Rejected)
}

func TestStateManager_AnswerAndCandidates(t *testing.T) {
	m := NewStateManager()
	_, err := m.CreateRequest(webrtc.SessionDescription{})
	require.NoError(t, err)

	m.SetAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"})
	answer := <-m.GetAnswerChan()
	assert.Equal(t, "answer-sdp", answer.SDP)

	m.SetCandidate(webrtc.ICECandidateInit{Candidate: "c1"})
	m.SetCandidate(webrtc.ICECandidateInit{Candidate: "c2"})
	m.CloseCandidateChan()

	// SetCandidate after close must not panic.
	m.SetCandidate(webrtc.ICECandidateInit{Candidate: "late"})
}

func TestStateManager_TransferDone(t *testing.T) {
	m := NewStateManager()
	_, err := m.CreateRequest(webrtc.SessionDescription{})
	require.NoError(t, err)

	done := m.WaitForTransferDone()
	select {
	case <-done:
		t.Fatal("transfer must not be done yet")
	case <-time.After(20 * time.Millisecond):
	}

	m.MarkTransferDone()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("MarkTransferDone did not unblock the waiter")
	}

	// CloseRequest after MarkTransferDone must not double close.
	m.CloseRequest()
}

func TestStateManager_NoActiveRequestChannelsAreClosed(t *testing.T) {
	m := NewStateManager()

	_, ok := <-m.GetAnswerChan()
	assert.False(t, ok)
	_, ok = <-m.GetCandidateChan()
	assert.False(t, ok)
	select {
	case <-m.WaitForTransferDone():
	case <-time.After(time.Second):
		t.Fatal("WaitForTransferDone must return a closed channel without a request")
	}
}
