package vectorstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadContent    = "text"
	payloadSource     = "source"
	payloadSourceKey  = "source_key"
	payloadChunkIndex = "chunk_index"

	scrollPageSize = 256
)

// QdrantConfig selects the qdrant server and collection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Qdrant stores records as points of one collection. The collection is created
// on first insert, sized to the first embedding, with cosine distance.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	ready      atomic.Bool
}

var _ Backend = (*Qdrant)(nil)

// NewQdrant connects to a qdrant server over gRPC.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection}, nil
}

// exists reports whether the collection is present, caching a positive answer.
func (q *Qdrant) exists(ctx context.Context) (bool, error) {
	if q.ready.Load() {
		return true, nil
	}
	ok, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	q.ready.Store(ok)
	return ok, nil
}

func (q *Qdrant) ensure(ctx context.Context, vectorSize int) error {
	ok, err := q.exists(ctx)
	if err != nil || ok {
		return err
	}
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(vectorSize),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	q.ready.Store(true)
	return nil
}

func (q *Qdrant) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := q.ensure(ctx, len(records[0].Embedding)); err != nil {
		return err
	}

	pts := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadContent:    r.Chunk.Content,
				payloadSource:     r.Chunk.Source,
				payloadSourceKey:  sourceKey(r.Chunk.Source),
				payloadChunkIndex: r.Chunk.ChunkIndex,
			}),
		}
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         pts,
	})
	return err
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]Match, error) {
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return nil, err
	}

	limit := uint64(k)
	scoreThreshold := float32(threshold)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Limit:          &limit,
		Query:          qdrant.NewQuery(vector...),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp))
	for _, r := range resp {
		matches = append(matches, Match{
			ID:    pointID(r.Id),
			Chunk: chunkFromPayload(r.Payload),
			Score: float64(r.Score),
		})
	}
	// qdrant already filtered and limited; rank only fixes tie order
	return rank(matches, k, threshold), nil
}

func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return err
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		// qdrant rejects malformed uuids; such ids cannot be stored anyway
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}
	if len(pointIDs) == 0 {
		return nil
	}

	wait := true
	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	return err
}

func (q *Qdrant) DeleteSource(ctx context.Context, source string) (int, error) {
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadSourceKey, sourceKey(source))},
	}
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count source points: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	wait := true
	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (q *Qdrant) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return entries, err
	}

	limit := uint32(scrollPageSize)
	var offset *qdrant.PointId
	for {
		resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, p := range resp.GetResult() {
			c := chunkFromPayload(p.Payload)
			entries = append(entries, Entry{ID: pointID(p.Id), Source: c.Source, ChunkIndex: c.ChunkIndex})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Clear drops the collection. The next insert recreates it.
func (q *Qdrant) Clear(ctx context.Context) error {
	ok, err := q.exists(ctx)
	if err != nil || !ok {
		return err
	}
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	q.ready.Store(false)
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch x := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return x.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", x.Num)
	}
	return ""
}

func chunkFromPayload(payload map[string]*qdrant.Value) Chunk {
	return Chunk{
		Source:     payload[payloadSource].GetStringValue(),
		ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
		Content:    payload[payloadContent].GetStringValue(),
	}
}
