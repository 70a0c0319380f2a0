package webrtc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/pkg/channel"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

const (
	MTU uint = 1400

	// TransferChannelLabel names the single data channel a session uses.
	TransferChannelLabel = "sharestream-transfer"
)

// Connection wraps a single WebRTC peer connection and its state.
type Connection struct {
	peerConnection *webrtc.PeerConnection
}

// SenderConn is the dialing side of the lifecycle: it creates the data
// channel and drives offer/answer through the signaler.
type SenderConn struct {
	*Connection
	signaler Signaler
}

// ReceiverConn is the accepting side: it answers an inbound offer and
// surfaces the remote data channel when it arrives.
type ReceiverConn struct {
	*Connection
}

type WebrtcAPI struct {
	api *webrtc.API
}

// Config holds the configuration for creating a new Connection.
type Config struct {
	ICEServers []webrtc.ICEServer
}

func NewWebrtcAPI() *WebrtcAPI {
	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(MTU)

	// NewAPI is needed to manage multiple PeerConnections in one application.
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	return &WebrtcAPI{api: api}
}

func (a *WebrtcAPI) createPeerConnection(config Config) (*webrtc.PeerConnection, error) {
	if len(config.ICEServers) == 0 {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	return a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
}

func (a *WebrtcAPI) NewSenderConnection(config Config, signaler Signaler) (*SenderConn, error) {
	if signaler == nil {
		return nil, fmt.Errorf("signaler is not configured")
	}

	pc, err := a.createPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return &SenderConn{
		Connection: &Connection{peerConnection: pc},
		signaler:   signaler,
	}, nil
}

func (a *WebrtcAPI) NewReceiverConnection(config Config) (*ReceiverConn, error) {
	pc, err := a.createPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return &ReceiverConn{
		Connection: &Connection{peerConnection: pc},
	}, nil
}

// Establish creates the transfer data channel, runs offer/answer through
// the signaler and blocks until the channel is open or ctx expires. The
// returned Channel delivers whole binary messages, in order, exactly once.
func (c *SenderConn) Establish(ctx context.Context, files []fileInfo.FileDescriptor) (channel.Channel, error) {
	// Ordered, reliable delivery is the default for a data channel; the
	// protocol depends on it.
	dc, err := c.peerConnection.CreateDataChannel(TransferChannelLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	adapter := NewDataChannelAdapter(dc)

	c.peerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.signaler.SendICECandidate(candidate.ToJSON())
		}
	})

	offer, err := c.peerConnection.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := c.peerConnection.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	if err := c.signaler.SendOffer(offer, files); err != nil {
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	answer, err := c.signaler.WaitForAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for answer: %w", err)
	}
	if err := c.peerConnection.SetRemoteDescription(*answer); err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	if err := adapter.WaitOpen(ctx); err != nil {
		return nil, fmt.Errorf("data channel never opened: %w", err)
	}
	slog.Info("Data channel established", "label", dc.Label())
	return adapter, nil
}

// HandleOfferAndCreateAnswer is called by the receiver to process an
// incoming offer.
func (c *ReceiverConn) HandleOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.peerConnection.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := c.peerConnection.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	if err := c.peerConnection.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("failed to set local description for answer: %w", err)
	}
	return &answer, nil
}

// OnTransferChannel registers a handler for the remote peer's transfer
// data channel, wrapped as a generic Channel.
func (c *ReceiverConn) OnTransferChannel(f func(channel.Channel)) {
	c.peerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != TransferChannelLabel {
			slog.Warn("Ignoring unexpected data channel", "label", dc.Label())
			return
		}
		f(NewDataChannelAdapter(dc))
	})
}

// Peer exposes the underlying peer connection for lifecycle wiring
// (connection state callbacks, inbound ICE candidates).
func (c *Connection) Peer() *webrtc.PeerConnection {
	return c.peerConnection
}

// AddICECandidate is called by both peers to add a candidate received from
// the other peer.
func (c *Connection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := c.peerConnection.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ice candidate: %w", err)
	}
	return nil
}

// Close gracefully shuts down the WebRTC connection.
func (c *Connection) Close() error {
	if c.peerConnection != nil {
		slog.Info("Closing webrtc connection")
		return c.peerConnection.Close()
	}
	return nil
}
