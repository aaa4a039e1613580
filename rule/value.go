package rule

import "strconv"

// lookupPath walks a dotted path through a tree of map[string]interface{} /
// []interface{} nodes, the same shape Parse/Enrich operate over.
func lookupPath(context interface{}, path string) (interface{}, bool) {
	segments := splitPath(path)
	cur := context
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			if arr, ok := cur.([]interface{}); ok {
				idx, err := strconv.Atoi(seg)
				if err != nil || idx < 0 || idx >= len(arr) {
					return nil, false
				}
				cur = arr[idx]
				continue
			}
			return nil, false
		}
		v, exists := m[seg]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		return true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}
