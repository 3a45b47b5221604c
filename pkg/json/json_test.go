package json

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLine(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteLine(&out, map[string]interface{}{"q": "a<b", "n": 1}))
	require.NoError(t, WriteLine(&out, []int{1, 2}))

	assert.Equal(t, "{\"n\":1,\"q\":\"a<b\"}\n[1,2]\n", out.String())
}

func TestWriteLineEncodeError(t *testing.T) {
	var out bytes.Buffer
	err := WriteLine(&out, math.Inf(1))
	require.Error(t, err)
	assert.Zero(t, out.Len())
}

func TestUnmarshalObject(t *testing.T) {
	m, err := UnmarshalObject([]byte(`{"price": 1.5, "tags": ["a"], "nested": {"ok": true}}`))
	require.NoError(t, err)
	assert.Equal(t, 1.5, m["price"])
	assert.Equal(t, []interface{}{"a"}, m["tags"])
	assert.Equal(t, map[string]interface{}{"ok": true}, m["nested"])

	for _, bad := range []string{`[1,2]`, `"text"`, `null`, `{"a":`} {
		_, err := UnmarshalObject([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("stale")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len())
	PutBuffer(again)

	PutBuffer(bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1)))
}
