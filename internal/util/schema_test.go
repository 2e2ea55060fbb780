package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calcArgs struct {
	Operation string   `json:"operation" description:"arithmetic operation" enum:"add,subtract,multiply,divide"`
	A         float64  `json:"a"`
	B         float64  `json:"b"`
	Precision *int     `json:"precision"`
	Notes     string   `json:"notes,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	hidden    string   //nolint:unused
}

func TestSchemaFor(t *testing.T) {
	schema := SchemaFor(calcArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 6)

	op := props["operation"].(map[string]any)
	assert.Equal(t, "string", op["type"])
	assert.Equal(t, "arithmetic operation", op["description"])
	assert.Equal(t, []any{"add", "subtract", "multiply", "divide"}, op["enum"])

	assert.Equal(t, "number", props["a"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])

	// Pointer and omitempty fields are optional.
	assert.ElementsMatch(t, []string{"operation", "a", "b"}, schema["required"])
}

func TestSchemaFor_NonStruct(t *testing.T) {
	schema := SchemaFor("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
	assert.Nil(t, schema["required"])
}

func TestValidateArguments(t *testing.T) {
	schema := SchemaFor(calcArgs{})

	err := ValidateArguments(map[string]any{"operation": "add", "a": 1.0, "b": 2.0}, schema)
	assert.NoError(t, err)

	err = ValidateArguments(map[string]any{"operation": "add", "a": 1.0}, schema)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "b", verr.Field)

	err = ValidateArguments(map[string]any{"operation": 5, "a": 1.0, "b": 2.0}, schema)
	require.Error(t, err)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "operation", verr.Field)

	// Extra, undeclared fields are tolerated.
	err = ValidateArguments(map[string]any{"operation": "add", "a": 1.0, "b": 2.0, "extra": true}, schema)
	assert.NoError(t, err)
}

func TestValidateArguments_JSONRoundTrippedSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
		"required": []any{"count"},
	}

	// Decoded JSON numbers arrive as float64; whole values count as integers.
	assert.NoError(t, ValidateArguments(map[string]any{"count": 3.0}, schema))
	assert.Error(t, ValidateArguments(map[string]any{"count": 3.5}, schema))
	assert.Error(t, ValidateArguments(map[string]any{}, schema))
}
