package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackfillSetFlagsEmpty(t *testing.T) {
	configs, err := parseBackfillSetFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, configs)
}

func TestParseBackfillSetFlagsGroupsByPipe(t *testing.T) {
	configs, err := parseBackfillSetFlags([]string{"A.message1=hi", "A.message2=bye", "B.message=yo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message1": "hi", "message2": "bye"}, configs["A"])
	assert.Equal(t, map[string]interface{}{"message": "yo"}, configs["B"])
}

func TestParseBackfillSetFlagsRejectsMissingPipePrefix(t *testing.T) {
	_, err := parseBackfillSetFlags([]string{"message1=hi"})
	assert.Error(t, err)
}

func TestParseBackfillSetFlagsRejectsMissingEquals(t *testing.T) {
	_, err := parseBackfillSetFlags([]string{"A.message1"})
	assert.Error(t, err)
}
