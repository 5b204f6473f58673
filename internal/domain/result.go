package domain

// ActionResult is the outcome of one executed action, as returned by the
// external action executor or replayed from the cache.
type ActionResult struct {
	ID     string         `json:"id,omitempty"`
	URL    string         `json:"url,omitempty"`
	Cached bool           `json:"cached,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// AsMap flattens the result into a log-friendly map.
func (r *ActionResult) AsMap() map[string]any {
	if r == nil {
		return nil
	}
	m := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		m[k] = v
	}
	if r.ID != "" {
		m["id"] = r.ID
	}
	if r.URL != "" {
		m["url"] = r.URL
	}
	if r.Cached {
		m["cached"] = true
	}
	return m
}
