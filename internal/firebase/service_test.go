package firebase

import (
	"testing"

	"starterkit_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewService_Unconfigured(t *testing.T) {
	svc, err := NewService(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestNewService_Emulator(t *testing.T) {
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", "localhost:9099")
	svc, err := NewService(&config.Config{
		UseAuthEmulator:          true,
		FirebaseAuthEmulatorHost: "localhost:9099",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.True(t, svc.UsesEmulator())
}

func TestNewService_EmulatorFlagWithoutHost(t *testing.T) {
	svc, err := NewService(&config.Config{UseAuthEmulator: true}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, svc, "the emulator flag alone is not a configuration")
}
