package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "postgres defaults",
			env:  map[string]string{"DATABASE_URL": "postgres://shop@localhost/shop"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 8080, cfg.Port)
				assert.Equal(t, DriverPostgres, cfg.StoreDriver)
				assert.Equal(t, 5, cfg.OrderMaxAttempts)
				assert.Equal(t, 10*time.Second, cfg.TxTimeout)
				assert.Equal(t, "order-receipts", cfg.KafkaReceiptTopic)
				assert.Equal(t, "shop", cfg.MongoDatabase)
				assert.Empty(t, cfg.KafkaBrokers)
			},
		},
		{
			name: "memory with lists",
			env: map[string]string{
				"STORE_DRIVER":          "Memory",
				"PORT":                  "9090",
				"KAFKA_BROKERS":         "kafka-1:9092, kafka-2:9092,",
				"MATERIAL_CATEGORY_IDS": "materials,toppings",
				"TX_TIMEOUT":            "3s",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, DriverMemory, cfg.StoreDriver)
				assert.Equal(t, ":9090", cfg.Address())
				assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
				assert.Equal(t, []string{"materials", "toppings"}, cfg.MaterialCategoryIDs)
				assert.Equal(t, 3*time.Second, cfg.TxTimeout)
			},
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"STORE_DRIVER": "postgres"},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "mongo without uri",
			env:     map[string]string{"STORE_DRIVER": "mongo"},
			wantErr: "MONGO_URI is required",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"STORE_DRIVER": "redis"},
			wantErr: "unknown STORE_DRIVER",
		},
		{
			name:    "zero attempts",
			env:     map[string]string{"STORE_DRIVER": "memory", "ORDER_MAX_ATTEMPTS": "0"},
			wantErr: "ORDER_MAX_ATTEMPTS",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"STORE_DRIVER": "memory", "TX_TIMEOUT": "soon"},
			wantErr: "TxTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for _, key := range []string{
				"PORT", "STORE_DRIVER", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE",
				"KAFKA_BROKERS", "KAFKA_RECEIPT_TOPIC", "ORDER_MAX_ATTEMPTS", "TX_TIMEOUT",
				"MATERIAL_CATEGORY_IDS",
			} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
