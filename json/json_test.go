package json

import (
	"bytes"
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presetDoc struct {
	Name      string  `json:"name" default:"default"`
	MaxWidth  int     `json:"maxWidth" default:"800"`
	MaxHeight int     `json:"maxHeight" default:"800"`
	Quality   float64 `json:"quality" default:"0.7"`
	Clamp     bool    `json:"clamp" default:"true"`
}

func TestMarshalAppliesDefaults(t *testing.T) {
	doc := &presetDoc{Name: "avatar", MaxWidth: 400}

	data, err := Marshal(doc)
	require.NoError(t, err)

	// defaults land on the value itself, not only the output
	assert.Equal(t, 800, doc.MaxHeight)
	assert.Equal(t, 0.7, doc.Quality)
	assert.True(t, doc.Clamp)

	var decoded presetDoc
	require.NoError(t, stdjson.Unmarshal(data, &decoded))
	assert.Equal(t, *doc, decoded)
}

func TestUnmarshalDefaults(t *testing.T) {
	var doc presetDoc
	require.NoError(t, Unmarshal([]byte(`{"name":"venue-cover","quality":0.6}`), &doc))
	assert.Equal(t, presetDoc{Name: "venue-cover", MaxWidth: 800, MaxHeight: 800, Quality: 0.6, Clamp: true}, doc)
}

func TestUnmarshalKeepsExplicitZeros(t *testing.T) {
	var doc presetDoc
	require.NoError(t, Unmarshal([]byte(`{"name":"","maxWidth":0,"quality":0,"clamp":false}`), &doc))

	assert.Equal(t, "", doc.Name)
	assert.Equal(t, 0, doc.MaxWidth)
	assert.Equal(t, 0.0, doc.Quality)
	assert.False(t, doc.Clamp)
	assert.Equal(t, 800, doc.MaxHeight)
}

func TestDecoder(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte(`{"name":"avatar","rotation":90}`)))
	dec.DisallowUnknownFields()

	var doc presetDoc
	assert.Error(t, dec.Decode(&doc))

	type sized struct {
		Bytes stdjson.Number `json:"bytes"`
	}
	dec = NewDecoder(bytes.NewReader([]byte(`{"bytes":999999999999999999}`)))
	dec.UseNumber()

	var s sized
	require.NoError(t, dec.Decode(&s))
	n, err := s.Bytes.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(999999999999999999), n)
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	require.NoError(t, enc.Encode(&presetDoc{Name: "<avatar>"}))

	out := buf.String()
	assert.Contains(t, out, "\n")
	assert.Contains(t, out, `"maxWidth": 800`)
	assert.Contains(t, out, "<avatar>")
}

func TestMarshalNonStructValues(t *testing.T) {
	data, err := Marshal(map[string]any{"presets": []string{"avatar", "default"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"presets":["avatar","default"]}`, string(data))

	s, err := MarshalToString([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", s)

	out, err := MarshalIndent(&presetDoc{}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"quality": 0.7`)
}
