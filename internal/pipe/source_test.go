package pipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourcePipeExposesExternalProduct(t *testing.T) {
	sp := NewSourcePipe(SourcePrefix+"raw0", []SourceSpec{{ProductName: "raw", Path: "/data/raw.csv"}})
	assert.True(t, IsSourcePipe(sp))
	assert.Equal(t, "/data/raw.csv", sp.SourcePath)

	prod, err := sp.ProductByName("raw")
	require.NoError(t, err)
	assert.True(t, prod.IsExternal())
	assert.Equal(t, "/data/raw.csv", prod.Path("/anything", "/anything"))
}

func TestNewSourcePipeBundlesMultipleProducts(t *testing.T) {
	sp := NewSourcePipe(SourcePrefix+"A0", []SourceSpec{
		{ProductName: "product0", Path: "inputs/raw.txt"},
		{ProductName: "product1", Path: "inputs/aux.txt"},
	})
	assert.True(t, IsSourcePipe(sp))
	assert.Len(t, sp.Products, 2)

	prod0, err := sp.ProductByName("product0")
	require.NoError(t, err)
	assert.Equal(t, "inputs/raw.txt", prod0.Path("/anything", "/anything"))

	prod1, err := sp.ProductByName("product1")
	require.NoError(t, err)
	assert.Equal(t, "inputs/aux.txt", prod1.Path("/anything", "/anything"))
}

func TestIsSourcePipeFalseForRegularPipe(t *testing.T) {
	p, err := NewBuilder("tokenize").
		Produces("tokens", "tokens.bin").
		Action(func(*RunContext) error { return nil }).
		Build()
	require.NoError(t, err)
	assert.False(t, IsSourcePipe(p))
}
