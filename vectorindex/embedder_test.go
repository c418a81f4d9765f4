package vectorindex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/skillcore/vectorindex"
)

func TestHashingEmbedderIsDeterministic(t *testing.T) {
	e := vectorindex.NewHashingEmbedder(128)

	v1, err := e.Embed("parse json validation schema")
	require.NoError(t, err)
	v2, err := e.Embed("parse json validation schema")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
}

func TestHashingEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := vectorindex.NewHashingEmbedder(32)
	v, err := e.Embed("   ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, 0.0, x)
	}
}

// TestHashingEmbedderIsDeterministicAcrossInstances guards the Save/Load
// contract: a vector embedded by one process must still match a vector
// embedded by a freshly-constructed embedder after a restart.
func TestHashingEmbedderIsDeterministicAcrossInstances(t *testing.T) {
	v1, err := vectorindex.NewHashingEmbedder(128).Embed("compose skills for a task")
	require.NoError(t, err)
	v2, err := vectorindex.NewHashingEmbedder(128).Embed("compose skills for a task")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestHashingEmbedderDistinctTextsDiffer(t *testing.T) {
	e := vectorindex.NewHashingEmbedder(256)
	v1, err := e.Embed("deploy application to kubernetes")
	require.NoError(t, err)
	v2, err := e.Embed("bake a chocolate cake")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}
