package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_ExtraPassthrough(t *testing.T) {
	payload := []byte(`{
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}],
		"max_tokens": 100,
		"logit_bias": {"50256": -100},
		"seed": 42
	}`)

	var req Request
	require.NoError(t, json.Unmarshal(payload, &req))

	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 100, req.MaxTokens)
	require.Len(t, req.Extra, 2)
	assert.JSONEq(t, `{"50256": -100}`, string(req.Extra["logit_bias"]))
	assert.Equal(t, "42", string(req.Extra["seed"]))

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var roundTrip map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &roundTrip))
	assert.Contains(t, roundTrip, "seed")
	assert.Contains(t, roundTrip, "logit_bias")
	assert.Contains(t, roundTrip, "model")
}

func TestRequest_ExtraNeverShadowsKnownFields(t *testing.T) {
	req := Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Extra: map[string]json.RawMessage{
			"model": json.RawMessage(`"smuggled"`),
			"seed":  json.RawMessage(`7`),
		},
	}

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, `"gpt-4o"`, string(decoded["model"]))
	assert.Equal(t, "7", string(decoded["seed"]))
}

func TestRequest_NoExtra(t *testing.T) {
	payload := []byte(`{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`)

	var req Request
	require.NoError(t, json.Unmarshal(payload, &req))
	assert.Nil(t, req.Extra)
}

func TestRequest_Clone(t *testing.T) {
	temp := 0.5
	orig := &Request{
		Model:       "gpt-4o",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: &temp,
		Stop:        []string{"###"},
		Extra: map[string]json.RawMessage{
			"seed": json.RawMessage(`1`),
		},
	}

	cp := orig.Clone()
	cp.Messages[0].Content = "mutated"
	cp.Stop[0] = "changed"
	cp.Extra["seed"] = json.RawMessage(`2`)

	assert.Equal(t, "hi", orig.Messages[0].Content)
	assert.Equal(t, "###", orig.Stop[0])
	assert.Equal(t, "1", string(orig.Extra["seed"]))
}

func TestRequest_CloneNil(t *testing.T) {
	var req *Request
	assert.Nil(t, req.Clone())
}

func TestStreamChunk_Done(t *testing.T) {
	open := &StreamChunk{Choices: []StreamChoice{{Delta: StreamDelta{Content: "par"}}}}
	assert.False(t, open.Done())

	closed := &StreamChunk{Choices: []StreamChoice{{FinishReason: "stop"}}}
	assert.True(t, closed.Done())

	empty := &StreamChunk{}
	assert.False(t, empty.Done())
}
