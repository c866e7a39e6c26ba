package app

import (
	"context"
	"testing"

	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_OptionalServicesDisabled(t *testing.T) {
	cfg := config.Default()

	a, err := New(context.Background(), cfg, inmemory.NewStore())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Importer)
	assert.NotNil(t, a.Reports)
	assert.Nil(t, a.Aggregator)
	assert.Nil(t, a.Runs)
}

func TestNew_Aggregator(t *testing.T) {
	cfg := config.Default()
	cfg.Nordigen.SecretID = "id"
	cfg.Nordigen.SecretKey = "key"

	a, err := New(context.Background(), cfg, inmemory.NewStore())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Aggregator)
}
