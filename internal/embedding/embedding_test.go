package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Deterministic(t *testing.T) {
	c := NewMockClient()
	a, err := c.Embed(context.Background(), "quarterly revenue report")
	require.NoError(t, err)
	b, err := c.Embed(context.Background(), "Quarterly revenue report")
	require.NoError(t, err)

	assert.Len(t, a, Dimensions)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestMockClient_OverlapRanksHigher(t *testing.T) {
	c := NewMockClient()
	ctx := context.Background()
	q, _ := c.Embed(ctx, "customer churn rising")
	near, _ := c.Embed(ctx, "customer churn rising in europe")
	far, _ := c.Embed(ctx, "office coffee machine broken")

	assert.Greater(t, Cosine(q, near), Cosine(q, far))
}

func TestCosine_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCachedClient_HitsCache(t *testing.T) {
	mock := NewMockClient()
	c, err := NewCachedClient(mock, 8)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Embed(ctx, "hello world")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Len(t, mock.Calls, 1)
	assert.Equal(t, 1, c.Len())
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("bogus", "")
	assert.Error(t, err)

	_, err = NewClient(ProviderOpenAI, "")
	assert.Error(t, err)

	c, err := NewClient(ProviderMock, "")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestOpenAIClient_RequestsFixedDimensions(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		vec := make([]float32, Dimensions)
		vec[0] = 1
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{"embedding": vec}}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithModel("text-embedding-3-large"))
	vec, err := c.Embed(context.Background(), "renewal risk")
	require.NoError(t, err)
	assert.Len(t, vec, Dimensions)
	assert.Equal(t, "text-embedding-3-large", got.Model)
	assert.Equal(t, Dimensions, got.Dimensions)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		temporary bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, false},
		{"gateway", http.StatusBadGateway, `upstream down`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAIClient("k", WithBaseURL(srv.URL)).Embed(context.Background(), "x")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.temporary, apiErr.Temporary())
		})
	}
}

func TestOpenAIClient_RejectsWrongDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{"embedding": []float32{1, 2, 3}}}})
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", WithBaseURL(srv.URL)).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "returned 3 dimensions")
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ProviderOpenAI, "")
	assert.Error(t, err)
	c, err := NewClient(ProviderMock, "")
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)
	_, err = NewClient("cohere", "k")
	assert.Error(t, err)
}
