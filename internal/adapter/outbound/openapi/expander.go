package openapi

// AnyMethodKey is the gateway's wildcard method entry in a path item.
const AnyMethodKey = "x-amazon-apigateway-any-method"

var concreteMethods = []string{"get", "post", "put", "delete", "patch", "head", "options"}

// ExpandAnyMethods replaces each path's wildcard method with concrete verbs, keeping
// any verb the path already declares. The input is not modified; a body without
// wildcard methods is returned as is.
func ExpandAnyMethods(body map[string]any) map[string]any {
	paths, ok := body["paths"].(map[string]any)
	if !ok {
		return body
	}

	var expanded map[string]any
	for p, raw := range paths {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		anyOp, ok := item[AnyMethodKey]
		if !ok {
			continue
		}
		if expanded == nil {
			expanded = make(map[string]any, len(paths))
			for k, v := range paths {
				expanded[k] = v
			}
		}

		next := make(map[string]any, len(item)+len(concreteMethods))
		for k, v := range item {
			if k != AnyMethodKey {
				next[k] = v
			}
		}
		for _, method := range concreteMethods {
			if _, declared := next[method]; !declared {
				next[method] = anyOp
			}
		}
		expanded[p] = next
	}

	if expanded == nil {
		return body
	}
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	out["paths"] = expanded
	return out
}
