package app

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

func TestBuild(t *testing.T) {
	config := domain.DefaultConfig()
	config.Output.Dir = filepath.Join(t.TempDir(), "out")
	config.Output.LogsDir = filepath.Join(t.TempDir(), "logs")

	components, err := Build(config, nil, nil, prometheus.NewRegistry())
	require.NoError(t, err)

	assert.NotNil(t, components.Pipeline)
	assert.NotNil(t, components.Metrics)
	assert.DirExists(t, config.Output.Dir)

	artifacts, err := components.Store.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
