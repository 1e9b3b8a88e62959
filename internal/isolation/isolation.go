// Package isolation forces the response headers that make a page
// cross-origin isolated.
package isolation

import (
	"net/http"
	"strings"
)

const (
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"

	OpenerPolicySameOrigin    = "same-origin"
	EmbedderPolicyRequireCorp = "require-corp"
)

// policies lists each forced header with its required value.
var policies = []struct {
	name  string
	value string
}{
	{HeaderOpenerPolicy, OpenerPolicySameOrigin},
	{HeaderEmbedderPolicy, EmbedderPolicyRequireCorp},
}

// Headers returns a copy of src with both policy headers set to their
// required values. Existing entries are replaced whatever their key casing,
// so src may come from a map built without canonicalization. src is not
// modified.
func Headers(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header, len(policies))
	}
	for _, p := range policies {
		for key := range dst {
			if strings.EqualFold(key, p.name) {
				delete(dst, key)
			}
		}
		dst[p.name] = []string{p.value}
	}
	return dst
}

// Overrides reports which policy headers src already carries with a value
// other than the required one. Absent headers are not overrides.
func Overrides(src http.Header) []string {
	var out []string
	for _, p := range policies {
		for key, vals := range src {
			if !strings.EqualFold(key, p.name) {
				continue
			}
			if len(vals) != 1 || vals[0] != p.value {
				out = append(out, p.name)
				break
			}
		}
	}
	return out
}
