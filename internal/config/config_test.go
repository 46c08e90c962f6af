package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRequiresTokenAndDirectory(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())

	cfg = Config{Token: "t"}
	require.Error(t, cfg.Validate())

	cfg = Config{Token: "t", Directory: "/tmp/x"}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedConsistencyBound(t *testing.T) {
	cfg := Config{
		Token:               "t",
		Directory:           "/tmp/x",
		ConsistencyBoundMin: 5,
		ConsistencyBoundMax: 1,
	}
	require.Error(t, cfg.Validate())
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Config{Token: "t", Directory: "/tmp/x"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":9095", cfg.MetricsAddr)
	require.Equal(t, defaultSubscriberBuffer, cfg.SubscriberBuffer)
}
