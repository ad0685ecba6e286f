package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethosgate/ethosgate/internal/models"
)

func TestDecodeRequests_JSONSingle(t *testing.T) {
	data := []byte(`{"id":"r1","description":"Send a note","attributes":{"benefit":3,"user_intent":"Help"}}`)
	reqs, err := decodeRequests(data, "req.json")
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	assert.Equal(t, "r1", reqs[0].ID)
	assert.Equal(t, "Send a note", reqs[0].Description)
	v, ok := reqs[0].Attributes["benefit"].Number()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	c, ok := reqs[0].Attributes["user_intent"].Category()
	assert.True(t, ok)
	assert.Equal(t, "Help", c)
}

func TestDecodeRequests_JSONList(t *testing.T) {
	data := []byte(`[{"id":"a","description":"one"},{"id":"b","description":"two"}]`)
	reqs, err := decodeRequests(data, "-")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "b", reqs[1].ID)
}

func TestDecodeRequests_YAML(t *testing.T) {
	single := `
id: y1
description: Deploy the new build
attributes:
  impact: 0.9
  reversible: "no"
`
	reqs, err := decodeRequests([]byte(single), "req.yaml")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	impact, ok := reqs[0].Attributes["impact"].Number()
	assert.True(t, ok)
	assert.Equal(t, 0.9, impact)
	rev, ok := reqs[0].Attributes["reversible"].Category()
	assert.True(t, ok)
	assert.Equal(t, "no", rev)

	list := `
- id: a
  description: one
- id: b
  description: two
`
	reqs, err = decodeRequests([]byte(list), "reqs.yaml")
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestDecodeRequests_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		file string
		want string
	}{
		{"empty", "   \n", "req.yaml", "input is empty"},
		{"unknown json field", `{"id":"a","descripton":"typo"}`, "req.json", "unknown field"},
		{"unknown yaml field", "id: a\ndescripton: typo\n", "req.yaml", "not found"},
		{"bool attribute", `{"id":"a","description":"x","attributes":{"flag":true}}`, "req.json", "number or a string"},
		{"nested attribute", "id: a\ndescription: x\nattributes:\n  nested: {a: 1}\n", "req.yaml", "scalar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRequests([]byte(tt.data), tt.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadInput_Stdin(t *testing.T) {
	data, err := readInput("-", strings.NewReader(`{"id":"s"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s"}`, string(data))

	_, err = readInput("/nonexistent/request.json", nil)
	assert.Error(t, err)
}

func TestParseAttrFlags(t *testing.T) {
	attrs, err := parseAttrFlags([]string{"benefit=3", "user_intent=Strategic Elimination", "ratio=NaN", "empty="})
	require.NoError(t, err)

	assert.Equal(t, models.Num(3), attrs["benefit"])
	assert.Equal(t, models.Cat("Strategic Elimination"), attrs["user_intent"])
	assert.Equal(t, models.Cat("NaN"), attrs["ratio"])
	assert.Equal(t, models.Cat(""), attrs["empty"])

	none, err := parseAttrFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"novalue", "=3"} {
		_, err := parseAttrFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}
