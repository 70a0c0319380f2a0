package sender

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhp30760/sharestream-local/pkg/discovery"
	"github.com/rhp30760/sharestream-local/pkg/transfer"
)

// fakeDiscovery replays scripted browse snapshots.
type fakeDiscovery struct {
	results []discovery.DiscoveryResult
}

func (f *fakeDiscovery) Announce(ctx context.Context, service discovery.ServiceInfo) error {
	<-ctx.Done()
	return nil
}

func (f *fakeDiscovery) Discover(ctx context.Context, service string) <-chan discovery.DiscoveryResult {
	out := make(chan discovery.DiscoveryResult, len(f.results)+1)
	for _, r := range f.results {
		out <- r
	}
	close(out)
	return out
}

func service(name, deviceID string) discovery.ServiceInfo {
	return discovery.ServiceInfo{
		Name:     name,
		Type:     discovery.DefaultServiceType,
		Domain:   discovery.DefaultDomain,
		Addr:     net.IPv4(192, 168, 1, 20),
		Port:     8660,
		DeviceID: deviceID,
	}
}

func TestFindReceiver_ByName(t *testing.T) {
	adapter := &fakeDiscovery{results: []discovery.DiscoveryResult{
		{Services: []discovery.ServiceInfo{service("desk", "id-1")}},
		{Services: []discovery.ServiceInfo{service("desk", "id-1"), service("laptop", "id-2")}},
	}}
	app := NewApp(adapter, transfer.DefaultTransferConfig())

	found, err := app.FindReceiver(context.Background(), "LAPTOP")
	require.NoError(t, err)
	assert.Equal(t, "laptop", found.Name)
}

func TestFindReceiver_ByDeviceID(t *testing.T) {
	adapter := &fakeDiscovery{results: []discovery.DiscoveryResult{
		{Services: []discovery.ServiceInfo{service("desk", "id-1"), service("laptop", "id-2")}},
	}}
	app := NewApp(adapter, transfer.DefaultTransferConfig())

	found, err := app.FindReceiver(context.Background(), "id-2")
	require.NoError(t, err)
	assert.Equal(t, "laptop", found.Name)
}

func TestFindReceiver_EmptyNameNeedsSingleReceiver(t *testing.T) {
	adapter := &fakeDiscovery{results: []discovery.DiscoveryResult{
		{Services: []discovery.ServiceInfo{service("desk", "id-1"), service("laptop", "id-2")}},
	}}
	app := NewApp(adapter, transfer.DefaultTransferConfig())

	// Two visible receivers are ambiguous without a name.
	_, err := app.FindReceiver(context.Background(), "")
	require.Error(t, err)
}

func TestFindReceiver_SingleReceiverWithoutName(t *testing.T) {
	adapter := &fakeDiscovery{results: []discovery.DiscoveryResult{
		{Services: []discovery.ServiceInfo{service("desk", "id-1")}},
	}}
	app := NewApp(adapter, transfer.DefaultTransferConfig())

	found, err := app.FindReceiver(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "desk", found.Name)
}

func TestFindReceiver_Timeout(t *testing.T) {
	adapter := &fakeDiscovery{}
	app := NewApp(adapter, transfer.DefaultTransferConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := app.FindReceiver(ctx, "nobody")
	require.Error(t, err)
}

func TestSendFiles_NoFiles(t *testing.T) {
	app := NewApp(&fakeDiscovery{}, transfer.DefaultTransferConfig())

	err := app.SendFiles(context.Background(), service("desk", "id-1"), nil)
	assert.ErrorIs(t, err, transfer.ErrNoFilesSelected)
}

func TestSendFiles_MissingPath(t *testing.T) {
	app := NewApp(&fakeDiscovery{}, transfer.DefaultTransferConfig())

	err := app.SendFiles(context.Background(), service("desk", "id-1"), []string{"/no/such/file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}
