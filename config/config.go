package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config armazena todas as configurações do serviço de produtos digitais.
type Config struct {
	// Geral
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Banco de Dados (PostgreSQL)
	DatabaseURL string        `envconfig:"DATABASE_URL" required:"true"`
	DBTimeout   time.Duration `envconfig:"DB_TIMEOUT" default:"5s"`

	// Cache (Redis)
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Armazenamento de arquivos (S3 ou compatível)
	S3Bucket        string `envconfig:"S3_BUCKET" required:"true"`
	S3Region        string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Loja (Shopify Admin GraphQL)
	ShopifyShop       string        `envconfig:"SHOPIFY_SHOP" required:"true"`
	ShopifyToken      string        `envconfig:"SHOPIFY_ADMIN_TOKEN" required:"true"`
	ShopifyAPIVersion string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-10"`
	ShopifyTimeout    time.Duration `envconfig:"SHOPIFY_TIMEOUT" default:"30s"`
	DigitalProductTag string        `envconfig:"DIGITAL_PRODUCT_TAG" default:"digital-product"`

	// Upload e concorrência
	UploadMaxMemoryMB  int64 `envconfig:"UPLOAD_MAX_MEMORY_MB" default:"32"`
	MaxParallelUploads int   `envconfig:"MAX_PARALLEL_UPLOADS" default:"4"`
	MaxParallelSync    int   `envconfig:"MAX_PARALLEL_SYNC" default:"4"`

	// Rate Limiting
	RateLimitMaxRequests int           `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`
	RateLimitPeriod      time.Duration `envconfig:"RATE_LIMIT_PERIOD" default:"1m"`
}

// LoadConfig carrega o .env (se existir) e depois as variáveis de ambiente.
// A aplicação não inicia se alguma variável obrigatória estiver ausente.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		// Sem .env as variáveis ainda podem vir do ambiente (ex: Docker).
		log.Println("Aviso: arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("Erro de Configuração: %v", err)
	}
	return cfg
}

// FromEnv lê a configuração somente do ambiente do processo.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
