package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/flapper/internal/config"
	"github.com/cory-johannsen/flapper/internal/game/room"
)

func TestRoomDefaults_MatchStockWorld(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, room.DefaultConfig(), roomDefaults(cfg.Room.Defaults))
}

func TestRoomDefaults_CopiesEveryField(t *testing.T) {
	p := config.PhysicsConfig{
		Gravity:         1,
		FlapVelocity:    2,
		PipeSpeed:       3,
		Gap:             4,
		SpawnIntervalMs: 5,
		GroundY:         6,
		WorldWidth:      7,
		WorldHeight:     8,
	}
	assert.Equal(t, room.Config{
		Gravity:         1,
		FlapVelocity:    2,
		PipeSpeed:       3,
		Gap:             4,
		SpawnIntervalMs: 5,
		GroundY:         6,
		WorldWidth:      7,
		WorldHeight:     8,
	}, roomDefaults(p))
}
