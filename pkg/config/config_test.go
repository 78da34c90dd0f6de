package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := DefaultConfig()
	c.Gossip.Port = 70000
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadRidgeBounds(t *testing.T) {
	c := DefaultConfig()
	c.Tomography.RidgeMin = 2
	c.Tomography.RidgeMax = 1
	assert.Error(t, c.Validate())
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	c := DefaultConfig()
	data, err := yaml.Marshal(c)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}
