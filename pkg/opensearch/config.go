package opensearch

// Config holds OpenSearch client connection parameters.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:"," envDefault:"http://localhost:9200"`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
	AuditIndex   string   `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"usagegate-audit"`
}
