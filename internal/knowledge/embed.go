package knowledge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// HashDimensions is the vector size of the hashing embedder.
const HashDimensions = 256

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// ErrNoEmbeddingKey is returned when the OpenAI embedder has no API key.
var ErrNoEmbeddingKey = errors.New("OPENAI_API_KEY is required for the openai embedder")

// HashEmbedding returns a deterministic bag-of-words embedder: every token
// is hashed into one of dims signed buckets and the result is L2
// normalized. It needs no network access and gives stable scores in tests.
func HashEmbedding(dims int) chromem.EmbeddingFunc {
	if dims <= 0 {
		dims = HashDimensions
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			sum := h.Sum32()
			sign := float32(1)
			if sum&(1<<31) != 0 {
				sign = -1
			}
			vec[int(sum%uint32(dims))] += sign
		}
		return normalize(vec), nil
	}
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; empty text gets a fixed unit vector.
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// OpenAIEmbedding returns an embedder backed by langchaingo's OpenAI client.
// An empty apiKey falls back to OPENAI_API_KEY.
func OpenAIEmbedding(apiKey, model string) (chromem.EmbeddingFunc, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoEmbeddingKey
	}
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	client, err := openai.New(openai.WithToken(apiKey), openai.WithEmbeddingModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		return vec, nil
	}, nil
}

// EmbeddingFor returns the embedder named by kind ("hash" or "openai").
func EmbeddingFor(kind string) (chromem.EmbeddingFunc, error) {
	switch kind {
	case "", "hash":
		return HashEmbedding(HashDimensions), nil
	case "openai":
		return OpenAIEmbedding("", "")
	default:
		return nil, fmt.Errorf("unknown embedder %q", kind)
	}
}
