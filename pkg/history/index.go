// Package history keeps an embedding index of previously analyzed messages
// so new reports can be compared against known campaigns. The index is
// in-memory and rebuilt from the detection store at startup.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/httputil"
)

// Match is a previously seen message similar to the one being analyzed.
type Match struct {
	DetectionID string
	Message     string
	Sender      string
	Verdict     string
	Similarity  float32
}

// Index stores message embeddings for similarity search across detections.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	count int
}

// NewIndex builds an index around the given embedding function.
func NewIndex(embed chromem.EmbeddingFunc) (*Index, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding function is nil")
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("detections", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &Index{db: db, collection: collection}, nil
}

// NewOllamaIndex builds an index backed by a local Ollama embedding model.
func NewOllamaIndex(model, baseURL string) (*Index, error) {
	return NewIndex(newOllamaEmbeddingFunc(model, baseURL))
}

// newOllamaEmbeddingFunc embeds text through Ollama's /api/embeddings
// endpoint, which uses a different request shape than the OpenAI-compatible
// routes.
func newOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	client := httputil.WithTimeout(30 * time.Second)

	return func(ctx context.Context, text string) ([]float32, error) {
		reqBody := map[string]string{
			"model":  model,
			"prompt": text,
		}
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST",
			strings.TrimRight(baseURL, "/")+"/api/embeddings", bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ollama embedding returned status %d", resp.StatusCode)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return result.Embedding, nil
	}
}

// Add indexes a completed detection. The message text is embedded lowercased
// so near-duplicate campaigns with different casing still cluster.
func (idx *Index) Add(ctx context.Context, dc *detection.Context) error {
	doc := chromem.Document{
		ID:      dc.DetectionID,
		Content: strings.ToLower(dc.MessageText),
		Metadata: map[string]string{
			"sender":     dc.Sender,
			"verdict":    string(dc.FinalVerdict),
			"created_at": dc.CreatedAt.Format(time.RFC3339),
		},
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Sequential add: the Ollama embedding endpoint handles one request at
	// a time well but falls over under concurrency.
	if err := idx.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to index detection %s: %w", dc.DetectionID, err)
	}
	idx.count++
	return nil
}

// Count reports how many detections are indexed.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}

// Similar returns up to k previously indexed messages ranked by embedding
// similarity to the given text.
func (idx *Index) Similar(ctx context.Context, message string, k int) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.count == 0 {
		return nil, nil
	}
	// chromem rejects queries asking for more results than documents.
	if k > idx.count {
		k = idx.count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := idx.collection.Query(ctx, strings.ToLower(message), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			DetectionID: r.ID,
			Message:     r.Content,
			Sender:      r.Metadata["sender"],
			Verdict:     r.Metadata["verdict"],
			Similarity:  r.Similarity,
		}
	}
	return matches, nil
}
