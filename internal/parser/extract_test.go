package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReplyPlainJSON(t *testing.T) {
	reply, err := ExtractReply(`{"final_reply_markdown": "Thanks for reading!"}`)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for reading!", reply)
}

func TestExtractReplyIgnoresOtherFields(t *testing.T) {
	reply, err := ExtractReply(`{"status": "ok", "final_reply_markdown": "hi", "tokens": 120}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestExtractReplyJSONLines(t *testing.T) {
	raw := strings.Join([]string{
		`{"type": "start", "model": "responder-1"}`,
		`{"type": "partial", "final_reply_markdown": "draft one"}`,
		`{"type": "result", "final_reply_markdown": "final version"}`,
	}, "\n")

	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "final version", reply, "last occurrence should win")
}

func TestExtractReplyNestedObject(t *testing.T) {
	reply, err := ExtractReply(`{"event": {"result": {"final_reply_markdown": "nested reply"}}}`)
	require.NoError(t, err)
	assert.Equal(t, "nested reply", reply)
}

func TestExtractReplyDoublyEncoded(t *testing.T) {
	// A streaming-event wrapper that stringifies its payload.
	inner, err := json.Marshal(map[string]string{"final_reply_markdown": "unwrapped"})
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]string{"type": "message", "data": string(inner)})
	require.NoError(t, err)

	reply, err := ExtractReply(string(outer))
	require.NoError(t, err)
	assert.Equal(t, "unwrapped", reply)
}

func TestExtractReplyDoublyEncodedInArray(t *testing.T) {
	raw := `[{"data": "{\"final_reply_markdown\": \"from array\"}"}]`
	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "from array", reply)
}

func TestExtractReplySkipsEmptyCandidates(t *testing.T) {
	raw := strings.Join([]string{
		`{"final_reply_markdown": "real"}`,
		`{"final_reply_markdown": ""}`,
	}, "\n")

	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "real", reply, "empty candidates never supersede")
}

func TestExtractReplySmartQuotes(t *testing.T) {
	raw := "{“final_reply_markdown”: “smart quoted”}"
	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "smart quoted", reply)
}

func TestExtractReplyAmidNoise(t *testing.T) {
	raw := strings.Join([]string{
		"warming up model...",
		"[progress] 42%",
		`{"final_reply_markdown": "buried in noise"}`,
		"done.",
	}, "\n")

	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "buried in noise", reply)
}

func TestExtractReplyMalformedButRepairable(t *testing.T) {
	// Trailing comma makes this invalid JSON; the repair pass recovers it.
	raw := `{"final_reply_markdown": "repaired", }`
	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "repaired", reply)
}

func TestExtractReplyMarkerFallback(t *testing.T) {
	// Output mangled beyond any parse: the marker scan still finds the
	// string literal after the field name.
	raw := `<<<garbage "final_reply_markdown": "rescued \"quote\"" trailing garbage`
	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, `rescued "quote"`, reply)
}

func TestExtractReplyFailureIsDiagnostic(t *testing.T) {
	raw := strings.Join([]string{
		"line one",
		`{"status": "ok"}`,
		"",
		"line three",
	}, "\n")

	_, err := ExtractReply(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Contains(t, err.Error(), "3 non-empty lines")
	assert.Contains(t, err.Error(), "1 valid JSON lines")
	assert.Contains(t, err.Error(), `0 "final_reply_markdown" occurrences`)
}

func TestExtractReplyEmptyInput(t *testing.T) {
	_, err := ExtractReply("")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestExtractReplyLastWinsAcrossDepths(t *testing.T) {
	raw := strings.Join([]string{
		`{"final_reply_markdown": "first"}`,
		`{"wrapper": {"final_reply_markdown": "second"}}`,
		`{"data": "{\"final_reply_markdown\": \"third\"}"}`,
	}, "\n")

	reply, err := ExtractReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "third", reply)
}
