// Package patch applies JSON merge-patch documents (RFC 7386): a field
// present with a value replaces, a nested object recurses, an explicit null
// removes, an absent field leaves the target unchanged.
package patch

import (
	"encoding/json"
	"fmt"
)

// Merge applies patchDoc to target and returns the merged document.
// A non-object patch replaces the target wholesale, as the wire format
// specifies; resource-level validation rejects the fallout separately.
func Merge(target, patchDoc []byte) ([]byte, error) {
	var pv any
	if err := json.Unmarshal(patchDoc, &pv); err != nil {
		return nil, fmt.Errorf("patch document: %w", err)
	}
	pm, ok := pv.(map[string]any)
	if !ok {
		return json.Marshal(pv)
	}

	var tv any
	if len(target) > 0 {
		if err := json.Unmarshal(target, &tv); err != nil {
			return nil, fmt.Errorf("patch target: %w", err)
		}
	}
	tm, ok := tv.(map[string]any)
	if !ok {
		tm = map[string]any{}
	}
	return json.Marshal(mergeObjects(tm, pm))
}

// Has reports whether the patch document explicitly mentions a top-level
// field, including a null for removal.
func Has(patchDoc []byte, field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(patchDoc, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}

func mergeObjects(dst, p map[string]any) map[string]any {
	for k, v := range p {
		if v == nil {
			delete(dst, k)
			continue
		}
		if vm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeObjects(dm, vm)
			} else {
				dst[k] = mergeObjects(map[string]any{}, vm)
			}
			continue
		}
		dst[k] = v
	}
	return dst
}
