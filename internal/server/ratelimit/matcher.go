package ratelimit

import (
	"strings"
	"time"
)

// Rule limits one method on a path pattern. Pattern segments written as
// {name} match any single path segment; a trailing "/*" matches any suffix.
type Rule struct {
	Method  string
	Pattern string
	Limit   int
	Window  time.Duration
	Burst   int // defaults to Limit
}

func (r *Rule) key() string {
	return r.Method + " " + r.Pattern
}

func (r *Rule) capacity() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// Match returns the first rule matching method and path, or nil.
// GET /health is never limited.
func Match(method, path string, rules []Rule) *Rule {
	if method == "GET" && path == "/health" {
		return &Rule{Pattern: "/health"}
	}
	for i := range rules {
		if rules[i].Method == method && matchPattern(rules[i].Pattern, path) {
			return &rules[i]
		}
	}
	return nil
}

func matchPattern(pattern, path string) bool {
	pp := strings.Split(strings.Trim(pattern, "/"), "/")
	sp := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range pp {
		if seg == "*" && i == len(pp)-1 {
			return len(sp) >= i
		}
		if i >= len(sp) {
			return false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if sp[i] == "" {
				return false
			}
			continue
		}
		if seg != sp[i] {
			return false
		}
	}
	return len(sp) == len(pp)
}
