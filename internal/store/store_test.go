package store

import (
	"context"
	"testing"

	"github.com/JonMunkholm/vendorrates/internal/config"
	"github.com/JonMunkholm/vendorrates/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverMemory}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.Store{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"}, nil)
	assert.ErrorContains(t, err, "mongo")
}

func TestOpen_BadDatabaseURL(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverPostgres, URL: "://nope"}, nil)
	assert.ErrorContains(t, err, "parse database URL")
}
