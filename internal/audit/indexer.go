// internal/audit/indexer.go
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
)

// Indexer mirrors audit entries into Elasticsearch for search. Strictly best
// effort: indexing failures are logged and counted, never surfaced to the
// transition that produced the entry. The postgres audit_log remains the
// source of truth.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = "esign-audit"
	}
	return &Indexer{client: client, index: index, log: log}
}

type indexedEntry struct {
	models.AuditLogEntry
	TenantSlug string `json:"tenantSlug"`
}

func (i *Indexer) Index(ctx context.Context, tenantSlug string, entry models.AuditLogEntry) {
	if i.client == nil {
		return
	}

	body, err := json.Marshal(indexedEntry{AuditLogEntry: entry, TenantSlug: tenantSlug})
	if err != nil {
		i.fail(err, entry.ID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := i.client.Index(
		i.index,
		strings.NewReader(string(body)),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(entry.ID),
	)
	if err != nil {
		i.fail(err, entry.ID)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.log.Warn("audit index rejected", map[string]interface{}{
			"entryId": entry.ID,
			"status":  res.Status(),
		})
		metrics.AuditIndexFailures.Inc()
	}
}

func (i *Indexer) fail(err error, entryID string) {
	i.log.WithError(err).Warn("audit index failed", map[string]interface{}{
		"entryId": entryID,
	})
	metrics.AuditIndexFailures.Inc()
}
