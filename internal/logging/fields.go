package logging

// cloneFields returns a shallow copy of the field map. Logger instances are
// immutable, so every derived logger gets its own map.
func cloneFields(fields map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}
	return cloned
}
