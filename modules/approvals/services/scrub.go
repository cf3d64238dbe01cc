package services

import (
	"bytes"
	"encoding/json"
)

// approvalMetadataKeys are injected into action payloads by callers that
// route operations through the approval flow. They must never reach the
// downstream API during replay.
var approvalMetadataKeys = map[string]struct{}{
	"_approval_metadata":       {},
	"justificativa_aprovacao":  {},
	"codigo_aprovacao":         {},
	"solicitacao_aprovacao_id": {},
}

// StripApprovalMetadata removes approval bookkeeping keys from a JSON
// document at every nesting level, leaving all other content untouched.
// Non-object, non-array values pass through unchanged.
func StripApprovalMetadata(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	cleaned := scrubValue(v)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return raw
	}
	return out
}

func scrubValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, drop := approvalMetadataKeys[k]; drop {
				delete(t, k)
				continue
			}
			t[k] = scrubValue(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = scrubValue(child)
		}
		return t
	default:
		return v
	}
}
