package webrtc

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// Signaler decouples the WebRTC logic from the signaling transport. The
// application layer provides a concrete implementation (here: HTTP + SSE
// in the api package).
type Signaler interface {
	// SendOffer delivers the offer together with the descriptors of the
	// files the sender wants to push, so the receiver can decide before
	// any channel exists.
	SendOffer(offer webrtc.SessionDescription, files []fileInfo.FileDescriptor) error
	WaitForAnswer(ctx context.Context) (*webrtc.SessionDescription, error)
	SendICECandidate(candidate webrtc.ICECandidateInit)
}
