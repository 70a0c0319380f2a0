package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMDNSAdapter_AnnounceStop(t *testing.T) {
	// mDNS needs a multicast-capable network; skip where that is flaky.
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &MDNSAdapter{}
	serviceInfo := ServiceInfo{
		Name:     "test-instance",
		Type:     "_test-sharestream._tcp",
		Domain:   DefaultDomain,
		Port:     8080,
		DeviceID: "device-1",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Announce(ctx, serviceInfo)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err, "Cancellation must be a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("Announce did not return after cancellation")
	}
}

func TestMDNSAdapter_Discover(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &MDNSAdapter{}

	serviceInfo := ServiceInfo{
		Name:     "test-instance",
		Type:     "_test-sharestream._tcp",
		Domain:   DefaultDomain,
		Port:     8080,
		DeviceID: "device-1",
	}

	go func() {
		_ = adapter.Announce(ctx, serviceInfo)
	}()
	time.Sleep(300 * time.Millisecond)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()

	service := fmt.Sprintf("%s.%s.", serviceInfo.Type, serviceInfo.Domain)
	outCh := adapter.Discover(queryCtx, service)

	result := <-outCh
	require.NoError(t, result.Error)
	require.NotEmpty(t, result.Services)

	found := result.Services[0]
	assert.Equal(t, serviceInfo.Name, found.Name)
	assert.Equal(t, serviceInfo.Type, found.Type)
	assert.Equal(t, serviceInfo.Domain, found.Domain)
	assert.Equal(t, serviceInfo.Port, found.Port)
	assert.Equal(t, serviceInfo.DeviceID, found.DeviceID)
}
