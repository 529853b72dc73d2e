package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TAX_RATE", "0.1")

	cfg := FromViper(newViper())

	assert.Equal(t, "8080", cfg.AppPort)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.1, cfg.Checkout.TaxRate, 1e-9)
	assert.InDelta(t, 50.0, cfg.Checkout.FreeShippingThreshold, 1e-9)
	assert.Equal(t, "eur", cfg.Checkout.Currency)
	assert.Equal(t, "products", cfg.Elastic.Index)
	assert.Equal(t, DriverMySQL, cfg.DB.Driver)
}

func TestValidate(t *testing.T) {
	cfg := &Config{DemoMode: true}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "secret"
	cfg.SessionSecret = "session"
	require.NoError(t, cfg.Validate())

	cfg.DemoMode = false
	require.Error(t, cfg.Validate())

	cfg.DB = DBConfig{User: "shop", Name: "storefront", Host: "db", Port: "3306"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "shop:@tcp(db:3306)/storefront?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DB.DSN())

	cfg.DB = DBConfig{Driver: DriverSQLite}
	require.Error(t, cfg.Validate())
	cfg.DB.Name = "storefront.db"
	require.NoError(t, cfg.Validate())

	cfg.DB.Driver = "postgres"
	require.Error(t, cfg.Validate())
}

func TestOAuthProviders(t *testing.T) {
	none := OAuthConfig{}
	assert.Empty(t, none.Providers("http://localhost:8080"))

	google := OAuthConfig{GoogleClientID: "id", GoogleClientSecret: "secret"}
	providers := google.Providers("http://localhost:8080")
	require.Len(t, providers, 1)
	assert.Equal(t, "google", providers[0].Name())
}
