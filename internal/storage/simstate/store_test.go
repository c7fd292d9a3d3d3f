package simstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "Paper Wallet #1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "paper_wallet_1.json"), s.path)

	state, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, s.Save(State{Cash: "95.5", Holdings: map[string]string{"tok": "10"}}))

	state, err = s.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "95.5", state.Cash)
	assert.Equal(t, map[string]string{"tok": "10"}, state.Holdings)
}

func TestSanitizeScope(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  Paper ", want: "paper"},
		{in: "btc/15m--up", want: "btc_15m_up"},
		{in: "***", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeScope(tt.in))
		})
	}
}
