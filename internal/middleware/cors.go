package middleware

import (
	"net/http"
	"strings"
)

// corsPolicy decides which browser origins may call the catalog API.
type corsPolicy struct {
	origins  map[string]bool
	wildcard bool
	methods  string
	headers  string
}

func newCORSPolicy(allowedOrigins, allowedMethods, allowedHeaders []string) *corsPolicy {
	p := &corsPolicy{
		origins: make(map[string]bool, len(allowedOrigins)),
		methods: strings.Join(allowedMethods, ", "),
		headers: strings.Join(allowedHeaders, ", "),
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			p.wildcard = true
			continue
		}
		p.origins[origin] = true
	}
	return p
}

// allow writes the origin headers for origin and reports whether it is
// permitted. Listed origins may send credentials; the wildcard may not.
func (p *corsPolicy) allow(h http.Header, origin string) bool {
	switch {
	case origin == "":
		return false
	case p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	case p.wildcard:
		h.Set("Access-Control-Allow-Origin", origin)
	default:
		return false
	}
	h.Add("Vary", "Origin")
	return true
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// CORS answers preflight requests with 204 and adds the allow headers to
// every response for a permitted origin. Other OPTIONS requests fall
// through to the router.
func CORS(allowedOrigins, allowedMethods, allowedHeaders []string) Middleware {
	policy := newCORSPolicy(allowedOrigins, allowedMethods, allowedHeaders)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := policy.allow(w.Header(), r.Header.Get("Origin"))

			if isPreflight(r) {
				if allowed {
					w.Header().Set("Access-Control-Allow-Methods", policy.methods)
					w.Header().Set("Access-Control-Allow-Headers", policy.headers)
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed {
				w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
			}
			next.ServeHTTP(w, r)
		})
	}
}
