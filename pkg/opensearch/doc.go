// Package opensearch creates an opensearch-go/v2 client from environment
// configuration and exposes a readiness probe. The audit trail can be shipped
// to the index named by Config.AuditIndex.
package opensearch
