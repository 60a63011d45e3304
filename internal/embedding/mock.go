package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// MockClient produces deterministic bag-of-words embeddings: each token is
// hashed into a bucket, so texts sharing words have high cosine similarity
// and identical texts have similarity 1.
type MockClient struct {
	Dimensions int
	Err        error

	mu    sync.Mutex
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{Dimensions: Dimensions}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, text)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}

	dims := c.Dimensions
	if dims <= 0 {
		dims = Dimensions
	}
	vec := make([]float32, dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
