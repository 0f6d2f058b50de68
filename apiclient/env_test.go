package apiclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() Config
		wantErr bool
	}{
		{
			name: "given no variables, then returns defaults",
			env:  map[string]string{},
			want: DefaultConfig,
		},
		{
			name: "given timeout and pool size, then overrides only those",
			env: map[string]string{
				"SHOP_API_TIMEOUT":                 "30s",
				"SHOP_API_MAX_IDLE_CONNS_PER_HOST": "4",
			},
			want: func() Config {
				cfg := DefaultConfig()
				cfg.Timeout = 30 * time.Second
				cfg.MaxIdleConnsPerHost = 4
				return cfg
			},
		},
		{
			name:    "given malformed duration, then returns error",
			env:     map[string]string{"SHOP_API_DIAL_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := ConfigFromEnv("SHOP_API_")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}
