package xray

// Merge returns a copy of base with every fragment merged in, in order.
// Objects merge key by key, arrays are concatenated, any other value replaces
// what was there. Neither base nor the fragments are modified.
func Merge(base map[string]any, fragments ...Fragment) map[string]any {
	out := cloneMap(base)
	for _, f := range fragments {
		mergeInto(out, f)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, sv := range src {
		dv, ok := dst[k]
		if !ok {
			dst[k] = clone(sv)
			continue
		}
		switch s := sv.(type) {
		case map[string]any:
			if d, ok := dv.(map[string]any); ok {
				mergeInto(d, s)
				continue
			}
		case Fragment:
			if d, ok := dv.(map[string]any); ok {
				mergeInto(d, s)
				continue
			}
		case []any:
			if d, ok := dv.([]any); ok {
				merged := make([]any, 0, len(d)+len(s))
				merged = append(merged, d...)
				for _, v := range s {
					merged = append(merged, clone(v))
				}
				dst[k] = merged
				continue
			}
		}
		dst[k] = clone(sv)
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Fragment:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}
