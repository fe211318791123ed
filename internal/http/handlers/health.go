package handlers

import "net/http"

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "researcher"})
}

// HealthDetailed also probes the web search and page reader collaborators.
func (api *API) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	searchOK := false
	readerOK := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		if api.webSearch != nil && api.webSearch.Configured() {
			searchOK = api.webSearch.Healthy(r.Context())
		}
	}()
	if api.webReader != nil && api.webReader.Configured() {
		readerOK = api.webReader.Healthy(r.Context())
	}
	<-done

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    "researcher",
		"web_search": searchOK,
		"web_reader": readerOK,
	})
}
