package domain

// Route maps one source chat (or the wildcard catch-all) to its webhook
// targets and filtering rules. Routes are loaded once at startup and are
// read-only during relaying.
type Route struct {
	ChatID      int64
	Wildcard    bool // catch-all route, matches any chat without an exact route
	Comment     string
	IgnoreUsers []string
	Webhooks    []string // non-empty, enforced at load time
}

// Ignores reports whether the route's ignore list contains the handle.
// Matching is exact and case-sensitive; an empty handle never matches.
func (r *Route) Ignores(handle string) bool {
	if handle == "" {
		return false
	}
	for _, u := range r.IgnoreUsers {
		if u == handle {
			return true
		}
	}
	return false
}
