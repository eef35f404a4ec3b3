package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		Endpoint: "http://localhost:4318",
		Disabled: true,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_CreatesProvider(t *testing.T) {
	// Non-routable address: nothing is exported because no spans are recorded.
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		Endpoint: "http://192.0.2.1:4318",
		Version:  "test",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
