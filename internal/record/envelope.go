package record

import (
	"bytes"
	"encoding/json"
)

// unwrapEnvelope accepts both a bare record and the {"data": {...}} or
// {"trip": {...}} envelopes some deployments return.
func unwrapEnvelope(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return trimmed
	}
	if _, ok := probe["id"]; ok {
		return trimmed
	}
	if _, ok := probe["_id"]; ok {
		return trimmed
	}
	for _, key := range []string{"data", "trip"} {
		inner, ok := probe[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '{' {
			return inner
		}
	}
	return trimmed
}
