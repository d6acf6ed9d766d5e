package pipe

import "time"

// ParameterType enumerates the scalar kinds a Parameter's value may hold:
// null, bool, integer, real, string, timestamp, byte string, complex.
type ParameterType int

const (
	TypeNull ParameterType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeTimestamp
	TypeBytes
	TypeComplex
)

func (t ParameterType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "real"
	case TypeString:
		return "string"
	case TypeTimestamp:
		return "timestamp"
	case TypeBytes:
		return "byte string"
	case TypeComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// inferType determines a ParameterType from a concrete Go value.
func inferType(v interface{}) ParameterType {
	switch v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case string:
		return TypeString
	case time.Time:
		return TypeTimestamp
	case []byte:
		return TypeBytes
	case complex64, complex128:
		return TypeComplex
	default:
		return TypeString
	}
}

// typeMatches reports whether v is an acceptable value for ParameterType t.
// TypeNull accepts only nil. TypeInt accepts any Go integer kind and a
// float64 with no fractional part, so that config-file decoding (which may
// produce float64 for integers) does not spuriously reject a legal integer
// parameter. TypeFloat accepts float32, float64, int and int64.
func typeMatches(t ParameterType, v interface{}) bool {
	switch t {
	case TypeNull:
		return v == nil
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case TypeFloat:
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	case TypeComplex:
		switch v.(type) {
		case complex64, complex128:
			return true
		}
		return false
	}
	return false
}
