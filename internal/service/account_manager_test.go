package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/config"
)

func TestAccountManager_ConfiguredAccounts(t *testing.T) {
	am := NewAccountManager(&config.Config{
		Accounts: []config.AccountConfig{
			{ID: "ops", Name: "Ops", APIKey: "k-ops", RateLimit: 5},
			{ID: "viewer", Name: "Viewer", APIKey: "k-view", ReadOnly: true},
		},
	})

	a, ok := am.ByAPIKey("k-ops")
	require.True(t, ok)
	assert.Equal(t, "ops", a.ID)
	assert.False(t, a.ReadOnly)
	assert.Equal(t, 10, a.Rate.Burst)

	v, ok := am.ByID("viewer")
	require.True(t, ok)
	assert.True(t, v.ReadOnly)
	assert.InDelta(t, 10, v.Rate.QPS, 1e-9)

	assert.Nil(t, am.Default())
	assert.NotNil(t, am.Limiter("ops"))
	assert.Nil(t, am.Limiter("nobody"))
	require.Len(t, am.List(), 2)
	assert.Equal(t, "ops", am.List()[0].ID)

	_, ok = am.ByAPIKey("wrong")
	assert.False(t, ok)
}

func TestAccountManager_DefaultAccount(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.APIKey = "secret"
	cfg.Server.ReadOnly = true
	am := NewAccountManager(cfg)

	def := am.Default()
	require.NotNil(t, def)
	assert.Equal(t, DefaultAccountID, def.ID)
	assert.True(t, def.ReadOnly)

	a, ok := am.ByAPIKey("secret")
	require.True(t, ok)
	assert.Same(t, def, a)
}
