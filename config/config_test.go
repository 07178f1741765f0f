package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"godigital/config"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/godigital?sslmode=disable")
	t.Setenv("S3_BUCKET", "digital-files")
	t.Setenv("SHOPIFY_SHOP", "loja.myshopify.com")
	t.Setenv("SHOPIFY_ADMIN_TOKEN", "shpat_test")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "2024-10", cfg.ShopifyAPIVersion)
	assert.Equal(t, "digital-product", cfg.DigitalProductTag)
	assert.Equal(t, 4, cfg.MaxParallelUploads)
	assert.Equal(t, time.Minute, cfg.RateLimitPeriod)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_TIMEOUT", "2s")
	t.Setenv("MAX_PARALLEL_SYNC", "8")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.DBTimeout)
	assert.Equal(t, 8, cfg.MaxParallelSync)
	assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL") // t.Setenv restaura o valor original ao final
	t.Setenv("S3_BUCKET", "digital-files")
	t.Setenv("SHOPIFY_SHOP", "loja.myshopify.com")
	t.Setenv("SHOPIFY_ADMIN_TOKEN", "shpat_test")

	_, err := config.FromEnv()
	assert.Error(t, err)
}
