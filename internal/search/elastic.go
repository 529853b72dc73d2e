package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/models"
)

// Searcher resolves free text queries to product ids ordered by relevance.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]uint, error)
	Index(ctx context.Context, p models.Product) error
	Reindex(ctx context.Context, products []models.Product) error
}

// Elastic indexes products in one Elasticsearch index.
type Elastic struct {
	es    *elasticsearch.Client
	index string
}

func NewElastic(es *elasticsearch.Client, index string) *Elastic {
	return &Elastic{es: es, index: index}
}

type document struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  uint     `json:"category_id"`
	Price       float64  `json:"price"`
	IsActive    bool     `json:"is_active"`
}

func toDocument(p models.Product) document {
	return document{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Tags:        p.TagList(),
		CategoryID:  p.CategoryID,
		Price:       p.Price,
		IsActive:    p.IsActive,
	}
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "name":        {"type": "text"},
      "slug":        {"type": "keyword"},
      "description": {"type": "text"},
      "tags":        {"type": "text"},
      "category_id": {"type": "long"},
      "price":       {"type": "double"},
      "is_active":   {"type": "boolean"}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (e *Elastic) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: e.index, Body: strings.NewReader(indexMapping)}.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.String())
	}
	logrus.WithField("index", e.index).Info("✅ Elasticsearch index created")
	return nil
}

func (e *Elastic) Index(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(toDocument(p))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: strconv.FormatUint(uint64(p.ID), 10),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.String())
	}
	return nil
}

// Reindex sends every product in one bulk request.
func (e *Elastic) Reindex(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range products {
		meta := map[string]any{"index": map[string]any{"_index": e.index, "_id": strconv.FormatUint(uint64(p.ID), 10)}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(toDocument(p)); err != nil {
			return err
		}
	}
	res, err := esapi.BulkRequest{Body: &buf, Refresh: "true"}.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.String())
	}
	var body struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("bulk index: decode: %w", err)
	}
	if body.Errors {
		return fmt.Errorf("bulk index: some documents were rejected")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				ID uint `json:"id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match on name, description and tags.
func (e *Elastic) Search(ctx context.Context, text string, limit int) ([]uint, error) {
	q := map[string]any{
		"size":    limit,
		"_source": []string{"id"},
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^3", "tags^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := esapi.SearchRequest{Index: []string{e.index}, Body: &buf}.Do(ctx, e.es)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}
	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return ids, nil
}
