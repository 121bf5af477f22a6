// Package storage keeps the semantic route index in Qdrant.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// grpcPort is where the Go client talks to Qdrant, whatever REST port the
// configured URL names.
const grpcPort = 6334

// QdrantConfig contains Qdrant-specific configuration
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// QdrantClient is the VectorStore backed by one Qdrant collection
type QdrantClient struct {
	collection string
	client     *qdrant.Client
}

// NewQdrantClient connects to the server named by config.URL
// (http://host:6333 or https://host)
func NewQdrantClient(config QdrantConfig) (*QdrantClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	u, err := url.Parse(config.URL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant URL %q", config.URL)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   grpcPort,
		APIKey: config.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantClient{collection: config.Collection, client: client}, nil
}

// CreateCollection creates name with cosine vectors of the given size
// unless it already exists
func (c *QdrantClient) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
		// route counts are small; index as soon as there is anything to index
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(uint64(100)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// PointCount returns the number of points stored in the collection
func (c *QdrantClient) PointCount(ctx context.Context) (uint64, error) {
	info, err := c.client.GetCollectionInfo(ctx, c.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to read collection %s: %w", c.collection, err)
	}
	return info.GetPointsCount(), nil
}

// Upsert stores one vector. Payload values are stored as strings.
func (c *QdrantClient) Upsert(ctx context.Context, id string, vector []float64, payload map[string]interface{}) error {
	if len(vector) == 0 {
		return fmt.Errorf("upsert called with empty vector for id=%s", id)
	}

	values := make(map[string]*qdrant.Value, len(payload))
	for key, val := range payload {
		values[key] = qdrant.NewValueString(fmt.Sprint(val))
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points: []*qdrant.PointStruct{{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(float32s(vector)...),
			Payload: values,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point %s: %w", id, err)
	}
	return nil
}

// Search returns the points closest to vector. A non-empty match restricts
// results to points whose payload keys equal the given values.
func (c *QdrantClient) Search(ctx context.Context, vector []float64, limit int, match map[string]string) ([]SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("search vector is empty")
	}

	query := &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(float32s(vector)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(match) > 0 {
		query.Filter = &qdrant.Filter{Must: keywordConditions(match)}
	}

	points, err := c.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", c.collection, err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		payload := make(map[string]interface{}, len(point.Payload))
		for key, val := range point.Payload {
			payload[key] = val.GetStringValue()
		}
		results = append(results, SearchResult{
			ID:      idString(point.Id),
			Score:   float64(point.Score),
			Payload: payload,
		})
	}
	return results, nil
}

// DeleteByFilter deletes points whose payload key equals value
func (c *QdrantClient) DeleteByFilter(ctx context.Context, key, value string) error {
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: keywordConditions(map[string]string{key: value})},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points where %s=%s: %w", key, value, err)
	}
	return nil
}

// Close closes the gRPC connection
func (c *QdrantClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// SearchResult is one scored point
type SearchResult struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

func keywordConditions(match map[string]string) []*qdrant.Condition {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		conds = append(conds, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: k,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: match[k]},
					},
				},
			},
		})
	}
	return conds
}

// pointID keeps whole-number ids numeric; UUIDs may start with digits
func pointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewID(id)
}

func idString(id *qdrant.PointId) string {
	switch {
	case id == nil:
		return ""
	case id.GetUuid() != "":
		return id.GetUuid()
	default:
		return strconv.FormatUint(id.GetNum(), 10)
	}
}

func float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
