package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

func chunkFrom(id string, page int, raw string) entities.Chunk {
	return entities.Chunk{
		ID:             id,
		Text:           raw,
		NormalizedText: normalize.Text(raw),
		PageStart:      page,
		PageEnd:        page,
	}
}

func TestRetrieve_EmptyCorpusReturnsEmpty(t *testing.T) {
	r := New()
	got, err := r.Retrieve("password", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_ReturnsAllWhenFewerThanK(t *testing.T) {
	r := New()
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "passwords must be hashed with bcrypt"),
		chunkFrom("doc:chunk_1", 2, "unrelated content about catering services"),
	}
	got, err := r.Retrieve("password hashing bcrypt", chunks, 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieve_RanksMoreRelevantChunkHigher(t *testing.T) {
	r := New()
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "the vendor shall provide catering for events"),
		chunkFrom("doc:chunk_1", 2, "all passwords must be hashed using bcrypt and rotated every 90 days, password length minimum 12 characters"),
		chunkFrom("doc:chunk_2", 3, "general terms and conditions of the master services agreement"),
	}

	got, err := r.Retrieve("password hashing rotation length", chunks, 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "doc:chunk_1", got[0].ID)
}

func TestRetrieve_TopKLimitsResultCount(t *testing.T) {
	r := New()
	var chunks []entities.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkFrom("doc:chunk_"+string(rune('0'+i)), i+1, "password policy section text"))
	}

	got, err := r.Retrieve("password policy", chunks, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestRetrieve_TiesBreakByAscendingChunkIndex(t *testing.T) {
	r := New()
	// Identical text in every chunk produces identical scores for all of them.
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "identical filler text"),
		chunkFrom("doc:chunk_1", 2, "identical filler text"),
		chunkFrom("doc:chunk_2", 3, "identical filler text"),
	}

	got, err := r.Retrieve("something not present anywhere", chunks, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "doc:chunk_0", got[0].ID)
	assert.Equal(t, "doc:chunk_1", got[1].ID)
	assert.Equal(t, "doc:chunk_2", got[2].ID)
}

func TestRetrieve_ZeroScoreChunksArePermitted(t *testing.T) {
	r := New()
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "completely unrelated catering terms"),
	}
	got, err := r.Retrieve("password hashing rotation", chunks, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].RelevanceScore)
}

func TestRetrieve_IsDeterministicAcrossRuns(t *testing.T) {
	r := New()
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "passwords must be rotated every ninety days"),
		chunkFrom("doc:chunk_1", 2, "encryption in transit uses tls 1.2 or higher"),
		chunkFrom("doc:chunk_2", 3, "background checks are required for new hires"),
	}

	first, err := r.Retrieve("password rotation hashing", chunks, 5)
	require.NoError(t, err)
	second, err := r.Retrieve("password rotation hashing", chunks, 5)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].RelevanceScore, second[i].RelevanceScore)
	}
}

func TestRetrieve_DefaultsTopKWhenNonPositive(t *testing.T) {
	r := New()
	var chunks []entities.Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunkFrom("doc:chunk_x", i+1, "password policy text repeated"))
	}
	got, err := r.Retrieve("password", chunks, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultTopK)
}

func TestRetrieve_PreservesFullChunkFields(t *testing.T) {
	r := New()
	chunks := []entities.Chunk{
		chunkFrom("doc:chunk_0", 1, "password policy text"),
	}
	got, err := r.Retrieve("password", chunks, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, chunks[0].Text, got[0].Text)
	assert.Equal(t, chunks[0].NormalizedText, got[0].NormalizedText)
	assert.Equal(t, chunks[0].PageStart, got[0].PageStart)
	assert.Equal(t, chunks[0].PageEnd, got[0].PageEnd)
}

func TestComputeIDF_EmptyVocabularyYieldsEmptyTable(t *testing.T) {
	idf := computeIDF(0, map[string]int{})
	assert.Empty(t, idf)
}
