package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	obj := map[string]any{
		"a": map[string]any{"b": []any{map[string]any{"c": 5}}},
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "Hello"}},
		},
		"data":   []any{map[string]any{"url": "https://x/y.png"}},
		"output": []any{"first", "second"},
		"grid":   []any{[]any{"r0c0", "r0c1"}},
		"empty":  nil,
	}

	cases := []struct {
		path  string
		want  any
		found bool
	}{
		{"a.b[0].c", 5, true},
		{"choices[0].message.content", "Hello", true},
		{"data[0].url", "https://x/y.png", true},
		{"output[0]", "first", true},
		{"output.1", "second", true},
		{"grid[0][1]", "r0c1", true},
		{"empty", nil, true},
		{"a.b[1].c", nil, false},
		{"a.missing.c", nil, false},
		{"output[x]", nil, false},
		{"empty.deeper", nil, false},
		{"choices.message", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := Extract(obj, tc.path)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractMissingOnEmptyObject(t *testing.T) {
	got, ok := Extract(map[string]any{}, "a.b")
	assert.False(t, ok)
	assert.Nil(t, got)

	got, ok = Extract(nil, "a")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestIsFalsy(t *testing.T) {
	assert.True(t, isFalsy(nil))
	assert.True(t, isFalsy(""))
	assert.True(t, isFalsy(false))
	assert.True(t, isFalsy(json.Number("0")))
	assert.True(t, isFalsy(0.0))

	assert.False(t, isFalsy("abc"))
	assert.False(t, isFalsy(json.Number("12")))
	assert.False(t, isFalsy(map[string]any{}))
}
