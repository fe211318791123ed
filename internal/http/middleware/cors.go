package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultCORSMaxAgeSeconds = 600

var (
	defaultCORSAllowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}
	defaultCORSAllowedHeaders = []string{
		"Accept",
		"Cache-Control",
		"Content-Type",
		"Idempotency-Key",
		"Last-Event-ID",
		"X-Request-Id",
	}
)

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

// corsPolicy is the compiled form of a CORSConfig: origin matching plus the
// precomputed preflight header values.
type corsPolicy struct {
	origins       []string
	anyOrigin     bool
	methodsHeader string
	headersHeader string
	maxAgeHeader  string
}

func compileCORSPolicy(cfg CORSConfig) corsPolicy {
	policy := corsPolicy{origins: trimmedNonEmpty(cfg.AllowedOrigins)}
	for _, origin := range policy.origins {
		if origin == "*" {
			policy.anyOrigin = true
			break
		}
	}

	methods := trimmedNonEmpty(cfg.AllowedMethods)
	if len(methods) == 0 {
		methods = defaultCORSAllowedMethods
	}
	headers := trimmedNonEmpty(cfg.AllowedHeaders)
	if len(headers) == 0 {
		headers = defaultCORSAllowedHeaders
	}
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAgeSeconds
	}

	policy.methodsHeader = strings.Join(methods, ", ")
	policy.headersHeader = strings.Join(headers, ", ")
	policy.maxAgeHeader = strconv.Itoa(maxAge)
	return policy
}

func (p corsPolicy) originAllowed(origin string) bool {
	if p.anyOrigin {
		return true
	}
	for _, allowed := range p.origins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (p corsPolicy) apply(w http.ResponseWriter, origin string, preflight bool) {
	w.Header().Add("Vary", "Origin")
	if p.anyOrigin {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}

	if preflight {
		w.Header().Add("Vary", "Access-Control-Request-Method")
		w.Header().Add("Vary", "Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Methods", p.methodsHeader)
		w.Header().Set("Access-Control-Allow-Headers", p.headersHeader)
		w.Header().Set("Access-Control-Max-Age", p.maxAgeHeader)
	}
}

func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := compileCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || !policy.originAllowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				policy.apply(w, origin, true)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			policy.apply(w, origin, false)
			next.ServeHTTP(w, r)
		})
	}
}

func trimmedNonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		result = append(result, value)
	}
	return result
}
