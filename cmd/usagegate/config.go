package main

import (
	"time"

	"github.com/dmitrymomot/usagegate/pkg/entitlement"
	"github.com/dmitrymomot/usagegate/pkg/httpserver"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
)

// Backend selectors.
const (
	backendNone       = "none"
	backendMemory     = "memory"
	backendRedis      = "redis"
	backendPostgres   = "postgres"
	backendMongo      = "mongo"
	backendOpenSearch = "opensearch"

	policyBuiltin = "builtin"
	policyFile    = "file"
	policyS3      = "s3"
)

// Config is the process configuration. Connection settings of each backend
// are loaded by its own package only when that backend is selected.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"production"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"usagegate"`
	LogLevel    string `env:"LOG_LEVEL"`

	QuotaStore        string `env:"QUOTA_STORE" envDefault:"memory"`
	SubscriptionStore string `env:"SUBSCRIPTION_STORE" envDefault:"memory"`
	AuditStore        string `env:"AUDIT_STORE" envDefault:"none"`
	PolicySource      string `env:"POLICY_SOURCE" envDefault:"builtin"`
	PolicyFile        string `env:"POLICY_FILE" envDefault:"quota-policies.yaml"`
	FailurePolicy     string `env:"FAILURE_POLICY" envDefault:"degraded_allow"`

	StoreTimeout       time.Duration `env:"QUOTA_STORE_TIMEOUT" envDefault:"5s"`
	EntitlementTimeout time.Duration `env:"ENTITLEMENT_TIMEOUT" envDefault:"3s"`
	RecordTimeout      time.Duration `env:"SUBSCRIPTION_RECORD_TIMEOUT" envDefault:"3s"`
	ReadinessTimeout   time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`
	RedisKeyPrefix     string        `env:"QUOTA_REDIS_PREFIX" envDefault:"usagegate:"`
	PurgeInterval      time.Duration `env:"QUOTA_PURGE_INTERVAL" envDefault:"1h"`

	HTTP        httpserver.Config
	Entitlement entitlement.Config
	Paddle      subscription.PaddleConfig
}
