package pipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	assert.Equal(t, TypeNull, inferType(nil))
	assert.Equal(t, TypeBool, inferType(true))
	assert.Equal(t, TypeInt, inferType(7))
	assert.Equal(t, TypeFloat, inferType(3.14))
	assert.Equal(t, TypeString, inferType("x"))
	assert.Equal(t, TypeTimestamp, inferType(time.Now()))
	assert.Equal(t, TypeBytes, inferType([]byte("x")))
}

func TestTypeMatchesIntegerWidening(t *testing.T) {
	assert.True(t, typeMatches(TypeInt, 5))
	assert.True(t, typeMatches(TypeInt, int64(5)))
	assert.True(t, typeMatches(TypeInt, float64(5)))
	assert.False(t, typeMatches(TypeInt, float64(5.5)))
	assert.False(t, typeMatches(TypeInt, "5"))
}

func TestTypeMatchesNull(t *testing.T) {
	assert.True(t, typeMatches(TypeNull, nil))
	assert.False(t, typeMatches(TypeNull, 0))
}

func TestParameterTypeString(t *testing.T) {
	assert.Equal(t, "integer", TypeInt.String())
	assert.Equal(t, "byte string", TypeBytes.String())
}
