// Package settings produces the deployment settings document of each theme by
// merging infrastructure defaults, theme defaults and per-application
// overrides.
package settings

// Merge deep-merges tiers from lowest to highest precedence into a new tree.
// Mappings merge key by key; arrays, scalars and explicit nulls in a later
// tier replace what came before. The inputs are not modified.
func Merge(tiers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, tier := range tiers {
		mergeInto(out, tier)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[key] = clone(value)
	}
}

// clone copies maps and slices so the result never aliases an input.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = clone(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = clone(val)
		}
		return s
	default:
		return v
	}
}
