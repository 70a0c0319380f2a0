package receiver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	dnssdlog "github.com/brutella/dnssd/log"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rhp30760/sharestream-local/api"
	"github.com/rhp30760/sharestream-local/internal/app"
	"github.com/rhp30760/sharestream-local/pkg/channel"
	"github.com/rhp30760/sharestream-local/pkg/discovery"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
	"github.com/rhp30760/sharestream-local/pkg/store"
	"github.com/rhp30760/sharestream-local/pkg/transfer"
	webrtcPkg "github.com/rhp30760/sharestream-local/pkg/webrtc"
)

// Options configures a receiver App.
type Options struct {
	Port           int
	DeviceName     string
	TransferConfig *transfer.TransferConfig
	Policy         api.AcceptancePolicy
	Store          *store.ContentStore
}

// App runs the receiving side: announce on the LAN, serve the signaling
// API and persist every completed file into the content store.
type App struct {
	deviceID     string
	opts         Options
	registrar    discovery.Adapter
	api          *api.API
	stateManager *app.StateManager
	webrtcAPI    *webrtcPkg.WebrtcAPI

	connMu     sync.Mutex
	activeConn *webrtcPkg.ReceiverConn
}

func NewApp(opts Options) *App {
	stateManager := app.NewStateManager()

	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	a := &App{
		deviceID:     uuid.New().String(),
		opts:         opts,
		registrar:    &discovery.MDNSAdapter{},
		stateManager: stateManager,
		webrtcAPI:    webrtcPkg.NewWebrtcAPI(),
	}
	a.api = api.NewAPI(a.acceptancePolicy, stateManager, a.handleRemoteCandidate)
	return a
}

// DeviceID returns the stable identity announced over mDNS.
func (a *App) DeviceID() string {
	return a.deviceID
}

// Run blocks until ctx is cancelled or one of the services fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.announce(ctx)
	})
	g.Go(func() error {
		return a.serveHTTP(ctx)
	})

	err := g.Wait()
	a.closeActiveConnection()
	return err
}

func (a *App) announce(ctx context.Context) error {
	name := a.opts.DeviceName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("could not get hostname: %w", err)
		}
		name = fmt.Sprintf("%s-%s", hostname, a.deviceID[:8])
	}

	serviceInfo := discovery.ServiceInfo{
		Name:     name,
		Type:     discovery.DefaultServiceType,
		Domain:   discovery.DefaultDomain,
		Port:     a.opts.Port,
		DeviceID: a.deviceID,
	}
	return a.registrar.Announce(ctx, serviceInfo)
}

func (a *App) serveHTTP(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.opts.Port),
		Handler: a.api,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Signaling API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		return ctx.Err()
	}
}

// acceptancePolicy consults the configured policy and, on acceptance,
// kicks off the WebRTC answer flow for the pending offer.
func (a *App) acceptancePolicy(files []fileInfo.FileDescriptor) app.Decision {
	decision := app.Accepted
	if a.opts.Policy != nil {
		decision = a.opts.Policy(files)
	}
	if decision == app.Accepted {
		go func() {
			if err := a.handleAcceptedOffer(context.Background()); err != nil {
				slog.Error("Failed to handle accepted offer", "error", err)
				a.stateManager.MarkTransferDone()
			}
		}()
	}
	return decision
}

// handleAcceptedOffer sets up the peer connection, wires the inbound data
// channel into a receive session and publishes the answer.
func (a *App) handleAcceptedOffer(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := a.webrtcAPI.NewReceiverConnection(webrtcPkg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create receiver connection: %w", err)
	}
	a.setActiveConn(conn)

	conn.Peer().OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Info("Peer connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			a.closeActiveConnection()
		}
	})

	conn.Peer().OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			a.stateManager.CloseCandidateChan()
			return
		}
		a.stateManager.SetCandidate(candidate.ToJSON())
	})

	conn.OnTransferChannel(func(ch channel.Channel) {
		a.attachReceiveSession(ch)
	})

	offer := a.stateManager.GetOffer()
	answer, err := conn.HandleOfferAndCreateAnswer(offer)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	select {
	case <-hctx.Done():
		return fmt.Errorf("handshake timed out before sending answer: %w", hctx.Err())
	default:
		a.stateManager.SetAnswer(*answer)
		return nil
	}
}

// attachReceiveSession pumps data channel messages into a receive session
// and stores each completed file.
func (a *App) attachReceiveSession(ch channel.Channel) {
	session := transfer.NewReceiveSession(a.opts.TransferConfig,
		func(file transfer.AssembledFile) {
			id, mirrored := a.opts.Store.Put(file.Descriptor.Name, file.Descriptor.MimeType, file.Data)
			slog.Info("Stored received file", "name", file.Descriptor.Name, "id", id, "size", len(file.Data))
			go func() {
				if err := <-mirrored; err != nil {
					slog.Warn("Durable mirror failed for received file", "id", id, "error", err)
				}
			}()
		},
		func() {
			slog.Info("Transfer complete")
			a.stateManager.MarkTransferDone()
		},
	)

	ch.OnData(func(payload []byte) {
		if err := session.HandleMessage(payload); err != nil {
			slog.Warn("Dropped invalid transfer message", "error", err)
		}
	})
	ch.OnClose(func() {
		if !session.Completed() {
			slog.Warn("Channel closed mid-transfer, discarding partial files")
			session.Abort()
			a.stateManager.MarkTransferDone()
		}
	})
	ch.OnError(func(err error) {
		slog.Error("Data channel error", "error", err)
	})
}

func (a *App) handleRemoteCandidate(candidate webrtc.ICECandidateInit) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.activeConn == nil {
		slog.Warn("Received an ICE candidate but there is no active connection")
		return
	}
	if err := a.activeConn.AddICECandidate(candidate); err != nil {
		slog.Warn("Failed to add inbound ICE candidate", "error", err)
	}
}

func (a *App) setActiveConn(conn *webrtcPkg.ReceiverConn) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.activeConn != nil {
		slog.Warn("An active connection already exists, closing it first")
		a.activeConn.Close()
	}
	a.activeConn = conn
}

func (a *App) closeActiveConnection() {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.activeConn != nil {
		a.activeConn.Close()
		a.activeConn = nil
	}
}
