package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/config"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.DB = ":memory:"

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Driver = "mongodb"

	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
