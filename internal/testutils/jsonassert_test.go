//go:build test

package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONAsserter_Match(t *testing.T) {
	rt := &recordingT{}
	ja := NewJSONAsserter(rt)

	actual := `{"address":"AA:BB:CC:DD:EE:FF","name":"Speaker","connected":true,"rssi":-40}`
	assert.True(t, ja.Assert(actual, `{"name":"Speaker","connected":true}`), "extra keys MUST be ignored by default")
	assert.Empty(t, rt.messages)
}

func TestJSONAsserter_Mismatch(t *testing.T) {
	rt := &recordingT{}
	ja := NewJSONAsserter(rt)

	assert.False(t, ja.Assert(`{"connected":false}`, `{"connected":true}`))
	assert.Len(t, rt.messages, 1)
}

func TestJSONAsserter_Arrays(t *testing.T) {
	ja := NewJSONAsserter(&recordingT{}, WithIgnoredFields("last_seen"))

	actual := `[{"name":"A","last_seen":"2026-01-01"},{"name":"B","last_seen":"2026-01-02"}]`
	assert.Empty(t, ja.Diff(actual, `[{"name":"A"},{"name":"B"}]`))
	assert.NotEmpty(t, ja.Diff(actual, `[{"name":"B"},{"name":"A"}]`), "array order MUST matter")
}

func TestJSONAsserter_StrictKeys(t *testing.T) {
	ja := NewJSONAsserter(&recordingT{}, WithIgnoreExtraKeys(false))
	assert.NotEmpty(t, ja.Diff(`{"a":1,"b":2}`, `{"a":1}`))
}

func TestJSONAsserter_InvalidJSON(t *testing.T) {
	ja := NewJSONAsserter(&recordingT{})
	assert.Contains(t, ja.Diff(`{`, `{}`), "invalid actual JSON")
	assert.Contains(t, ja.Diff(`{}`, `[`), "invalid expected JSON")
}
