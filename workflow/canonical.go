package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalJSON produces a byte-stable JSON encoding of v: object keys are
// sorted and re-encoded, so the same logical value serializes identically
// regardless of map iteration order or original key ordering (P9).
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalize(generic))
}

// canonicalize recursively rewrites maps into a form that json.Marshal
// always emits in sorted-key order (encoding/json already sorts
// map[string]any keys, so this mainly normalizes nested structures
// consistently rather than altering Go's own marshal order).
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = canonicalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// canonicalHash returns the hex-encoded SHA-256 digest of v's canonical
// JSON form, used both for checkpoint content-hash coalescing (§4.5) and
// for the speculation cache fingerprint (P9/P10).
func canonicalHash(v any) (string, error) {
	data, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint computes the speculation-cache key for invoking capabilityID
// (a task's Tool for tool_call, or Task.CapabilityID() for code_exec) with
// resolved arguments args: canonical_json(tool_or_capability_id,
// resolved_args), per §3's SpeculationCacheEntry key and P9. Keying on the
// capability rather than the task id means two different tasks invoking
// the same tool with the same arguments share a cache entry, and a
// replanned DAG that reuses a task id for a different tool never produces
// a false hit.
//
// Exported so package speculate can compute the identical key when
// populating the cache ahead of the controller's own lookup.
func Fingerprint(capabilityID string, args map[string]any) (string, error) {
	return canonicalHash(map[string]any{"id": capabilityID, "args": args})
}
