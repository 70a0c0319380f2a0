package sender

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/api"
	"github.com/rhp30760/sharestream-local/pkg/concurrency"
	"github.com/rhp30760/sharestream-local/pkg/discovery"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
	"github.com/rhp30760/sharestream-local/pkg/transfer"
	webrtcPkg "github.com/rhp30760/sharestream-local/pkg/webrtc"
)

// App drives the sending side: find a receiver on the LAN, negotiate a
// data channel and push the selected files through a transfer session.
type App struct {
	serviceID       string
	guard           *concurrency.ConcurrencyGuard
	discoverer      discovery.Adapter
	webrtcAPI       *webrtcPkg.WebrtcAPI
	transferConfig  *transfer.TransferConfig
	transferTimeout time.Duration
}

func NewApp(adapter discovery.Adapter, transferConfig *transfer.TransferConfig) *App {
	return &App{
		serviceID:       uuid.New().String(),
		guard:           concurrency.NewConcurrencyGuard(),
		discoverer:      adapter,
		webrtcAPI:       webrtcPkg.NewWebrtcAPI(),
		transferConfig:  transferConfig,
		transferTimeout: 2 * time.Minute,
	}
}

// FindReceiver browses the LAN until a receiver matching name shows up.
// An empty name matches as soon as exactly one receiver is visible.
func (a *App) FindReceiver(ctx context.Context, name string) (discovery.ServiceInfo, error) {
	serviceType := fmt.Sprintf("%s.%s.", discovery.DefaultServiceType, discovery.DefaultDomain)
	results := a.discoverer.Discover(ctx, serviceType)

	for {
		select {
		case <-ctx.Done():
			return discovery.ServiceInfo{}, fmt.Errorf("no receiver found: %w", ctx.Err())
		case result, ok := <-results:
			if !ok {
				return discovery.ServiceInfo{}, fmt.Errorf("discovery stopped before a receiver was found")
			}
			if result.Error != nil {
				return discovery.ServiceInfo{}, result.Error
			}
			if match, ok := matchReceiver(result.Services, name); ok {
				return match, nil
			}
		}
	}
}

func matchReceiver(services []discovery.ServiceInfo, name string) (discovery.ServiceInfo, bool) {
	if name == "" {
		if len(services) == 1 {
			return services[0], true
		}
		return discovery.ServiceInfo{}, false
	}
	for _, s := range services {
		if strings.EqualFold(s.Name, name) || s.DeviceID == name {
			return s, true
		}
	}
	return discovery.ServiceInfo{}, false
}

// SendFiles loads the given paths and transfers them to the receiver. Only
// one transfer runs at a time; a second call returns concurrency.ErrBusy.
func (a *App) SendFiles(ctx context.Context, receiver discovery.ServiceInfo, paths []string) error {
	if len(paths) == 0 {
		return transfer.ErrNoFilesSelected
	}

	files := make([]fileInfo.SourceFile, 0, len(paths))
	for _, path := range paths {
		file, err := fileInfo.LoadSourceFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		files = append(files, file)
	}

	return a.guard.ExecuteWithContext(ctx, func(taskCtx context.Context) error {
		transferCtx, cancel := context.WithTimeout(taskCtx, a.transferTimeout)
		defer cancel()
		return a.runTransfer(transferCtx, receiver, files)
	})
}

func (a *App) runTransfer(ctx context.Context, receiver discovery.ServiceInfo, files []fileInfo.SourceFile) error {
	receiverURL := fmt.Sprintf("http://%s", net.JoinHostPort(receiver.Addr.String(), fmt.Sprintf("%d", receiver.Port)))
	slog.Info("Starting transfer", "receiver", receiver.Name, "url", receiverURL, "files", len(files))

	apiClient := api.NewClient(a.serviceID)
	apiClient.SetReceiverURL(receiverURL)

	var conn *webrtcPkg.SenderConn
	signaler := api.NewAPISignaler(ctx, apiClient, func(candidate webrtc.ICECandidateInit) error {
		return conn.AddICECandidate(candidate)
	})

	conn, err := a.webrtcAPI.NewSenderConnection(webrtcPkg.Config{}, signaler)
	if err != nil {
		return fmt.Errorf("failed to create webrtc connection: %w", err)
	}
	defer conn.Close()

	descriptors := make([]fileInfo.FileDescriptor, len(files))
	for i, f := range files {
		descriptors[i] = f.Descriptor
	}

	ch, err := conn.Establish(ctx, descriptors)
	if err != nil {
		return fmt.Errorf("could not establish data channel: %w", err)
	}

	session := transfer.NewTransferSession(a.transferConfig)
	if err := session.Start(ch, files); err != nil {
		return fmt.Errorf("failed to start transfer session: %w", err)
	}
	if err := session.SendAll(); err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	slog.Info("Transfer complete", "files", len(files))
	return nil
}
