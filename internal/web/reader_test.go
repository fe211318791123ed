package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBatchReturnsRecordPerURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/read", r.URL.Path)

		var payload readBatchPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Pages, 3)
		assert.Equal(t, "renewables in germany", payload.Pages[0].Query)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[
			{"url":"https://a.example/1","title":"Read A","summary":"summary A","key_points":["p1","p2"],"success":true},
			{"url":"https://a.example/2","success":false,"error":"fetch timeout"}
		]}`))
	}))
	defer server.Close()

	client := NewReaderClient(ReaderClientConfig{BaseURL: server.URL})
	records := client.ReadBatch(context.Background(), []ReadRequest{
		{URL: "https://a.example/1", Query: "renewables in germany"},
		{URL: "https://a.example/2", Query: "renewables in germany"},
		{URL: "https://a.example/3", Query: "renewables in germany"},
	})

	require.Len(t, records, 3)
	assert.True(t, records["https://a.example/1"].Success)
	assert.Equal(t, "summary A", records["https://a.example/1"].Summary)
	assert.Equal(t, []string{"p1", "p2"}, records["https://a.example/1"].KeyPoints)

	assert.False(t, records["https://a.example/2"].Success)
	assert.Equal(t, "fetch timeout", records["https://a.example/2"].ErrorMsg)

	// URL the collaborator never answered for still gets a failed record.
	assert.False(t, records["https://a.example/3"].Success)
}

func TestReadBatchIgnoresUnrequestedURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pages":[
			{"url":"https://evil.example/injected","title":"nope","success":true},
			{"url":"https://a.example/1","summary":"ok","success":true}
		]}`))
	}))
	defer server.Close()

	client := NewReaderClient(ReaderClientConfig{BaseURL: server.URL})
	records := client.ReadBatch(context.Background(), []ReadRequest{{URL: "https://a.example/1", Query: "q"}})

	require.Len(t, records, 1)
	assert.True(t, records["https://a.example/1"].Success)
}

func TestReadBatchWholeBatchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewReaderClient(ReaderClientConfig{BaseURL: server.URL})
	records := client.ReadBatch(context.Background(), []ReadRequest{
		{URL: "https://a.example/1", Query: "q"},
		{URL: "https://a.example/2", Query: "q"},
	})

	require.Len(t, records, 2)
	for _, record := range records {
		assert.False(t, record.Success)
		assert.Equal(t, "reader returned status 500", record.ErrorMsg)
	}
}

func TestReadBatchEmptyInput(t *testing.T) {
	client := NewReaderClient(ReaderClientConfig{BaseURL: "http://reader.local"})
	assert.Empty(t, client.ReadBatch(context.Background(), nil))
}
