package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for the persistent vector store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Namespace is the Qdrant collection name acting as the standing
	// knowledge base. All ingested chunks and all no-document queries are
	// scoped to this collection.
	Namespace string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the embedding model's output dimension.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant collection. Unlike
// the ephemeral MemoryStore it survives across requests: entries appended by
// one request are visible to later queries against the same namespace.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig
}

// NewQdrantStore connects to Qdrant and ensures the namespace collection
// exists (creating it with cosine distance if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("qdrant: namespace must not be empty")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// ensureCollection creates the namespace collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Namespace)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Namespace, err)
	}
	return nil
}

// Upsert appends a batch of documents with their embeddings. The batch is
// dimension-checked locally before anything is sent so a misconfigured
// embedder cannot partially populate the collection.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d docs but %d embeddings", len(docs), len(embeddings))
	}
	for i, vec := range embeddings {
		if uint64(len(vec)) != s.cfg.VectorSize {
			return fmt.Errorf("qdrant: entry %d has dimension %d, collection expects %d: %w",
				i, len(vec), s.cfg.VectorSize, ErrDimensionMismatch)
		}
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]interface{}{
			"content": doc.Content,
			"source":  doc.Source,
			"page":    strconv.Itoa(doc.Page),
			"ordinal": strconv.Itoa(doc.Ordinal),
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Namespace,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]Document, error) {
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Namespace,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if p := r.Payload; p != nil {
			for key, v := range p {
				switch key {
				case "content":
					doc.Content = v.GetStringValue()
				case "source":
					doc.Source = v.GetStringValue()
				case "page":
					doc.Page, _ = strconv.Atoi(v.GetStringValue())
				case "ordinal":
					doc.Ordinal, _ = strconv.Atoi(v.GetStringValue())
				default:
					doc.Metadata[key] = v.GetStringValue()
				}
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Len reports the number of points currently in the namespace.
func (s *QdrantStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Namespace,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Delete removes points from the namespace by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Namespace,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID maps a chunk ID onto a deterministic UUID, since Qdrant point IDs
// must be UUIDs or unsigned integers. The same chunk ID always yields the
// same point, keeping re-ingestion idempotent.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}
