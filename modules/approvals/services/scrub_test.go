package services_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefia/approvals/modules/approvals/services"
)

func TestStripApprovalMetadata(t *testing.T) {
	in := json.RawMessage(`{
		"amount": 1500.75,
		"justificativa_aprovacao": "urgent",
		"codigo_aprovacao": "APR-2026-ABCD1234",
		"_approval_metadata": {"policy": "x"},
		"nested": {
			"solicitacao_aprovacao_id": "abc",
			"keep": true,
			"deeper": [{"codigo_aprovacao": "y", "value": 1}, 2, "three"]
		},
		"items": [{"_approval_metadata": null, "id": "a"}]
	}`)

	out := services.StripApprovalMetadata(in)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))

	assert.Contains(t, got, "amount")
	assert.NotContains(t, got, "justificativa_aprovacao")
	assert.NotContains(t, got, "codigo_aprovacao")
	assert.NotContains(t, got, "_approval_metadata")

	nested := got["nested"].(map[string]any)
	assert.NotContains(t, nested, "solicitacao_aprovacao_id")
	assert.Equal(t, true, nested["keep"])

	deeper := nested["deeper"].([]any)
	first := deeper[0].(map[string]any)
	assert.NotContains(t, first, "codigo_aprovacao")
	assert.Contains(t, first, "value")

	items := got["items"].([]any)
	item := items[0].(map[string]any)
	assert.NotContains(t, item, "_approval_metadata")
	assert.Equal(t, "a", item["id"])
}

func TestStripApprovalMetadataPreservesNumbers(t *testing.T) {
	in := json.RawMessage(`{"amount": 1234567890123456789, "rate": 0.1}`)
	out := services.StripApprovalMetadata(in)
	assert.JSONEq(t, string(in), string(out))
}

func TestStripApprovalMetadataPassesThroughNonJSON(t *testing.T) {
	in := json.RawMessage(`not json`)
	assert.Equal(t, in, services.StripApprovalMetadata(in))
	assert.Empty(t, services.StripApprovalMetadata(nil))
}
