package httpserver

import (
	"log"
	"net/http"
	"strings"

	"github.com/mediascope/researcher/internal/http/handlers"
	"github.com/mediascope/researcher/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/healthz/detailed", deps.API.HealthDetailed)
	mux.HandleFunc("/v1/research", deps.API.Research)
	mux.HandleFunc("/v1/research/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream") {
			deps.API.ResearchStream(w, r)
			return
		}
		deps.API.ResearchTask(w, r)
	})

	handler := http.Handler(mux)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
