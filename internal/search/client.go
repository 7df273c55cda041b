// Package search maintains the Elasticsearch index of classified reports
// for the admin dashboard. The index is fed exclusively through the
// transactional outbox: the pipeline commit stages a document, the relay
// drains staged rows into the index. Indexing failures never block or roll
// back classification.
package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/search/mappings"
)

// NewClient creates the Elasticsearch client from configuration.
func NewClient(cfg config.SearchConfig) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// Indexer writes report documents into the search index.
type Indexer struct {
	client *es.Client
	index  string
}

// NewIndexer creates an indexer over the named index.
func NewIndexer(client *es.Client, indexName string) *Indexer {
	return &Indexer{
		client: client,
		index:  indexName,
	}
}

// EnsureIndex creates the index with the report mapping when it does not
// exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists(
		[]string{i.index},
		i.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := mappings.NewReportMapping()
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("report mapping invalid: %w", err)
	}
	body, err := mapping.GetJSON()
	if err != nil {
		return fmt.Errorf("render report mapping: %w", err)
	}

	createRes, err := i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("error creating index %s: %s", i.index, createRes.String())
	}
	return nil
}

// IndexDocument indexes one document body under the given id. Re-indexing
// the same id overwrites, so replayed outbox rows are harmless.
func (i *Indexer) IndexDocument(ctx context.Context, docID string, body []byte) error {
	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", docID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document %s: %s", docID, res.String())
	}
	return nil
}

// TestConnection tests the connection to Elasticsearch.
func (i *Indexer) TestConnection(ctx context.Context) error {
	res, err := i.client.Info(i.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response from elasticsearch: %s", res.String())
	}
	return nil
}
