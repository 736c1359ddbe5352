package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/meinside/openai-go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeProvider simulates the upstream API so handler tests never leave the
// process.
type fakeProvider struct {
	mu sync.Mutex

	server *httptest.Server

	reply        string
	streamChunks []string
	failNext     bool
	failImages   bool

	// abort the connection after this many stream chunks (0 disables)
	abortAfter int

	// messages of the most recent completion request, as sent on the wire
	lastMessages []providerMessage
	lastModel    string
}

type providerMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type providerChatRequest struct {
	Model    string            `json:"model"`
	Messages []providerMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{reply: "Hello there!"}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", p.completions)
	mux.HandleFunc("/v1/images/generations", p.images)
	p.server = httptest.NewServer(mux)

	return p
}

func (p *fakeProvider) close() {
	p.server.Close()
}

func (p *fakeProvider) lastRequest() ([]providerMessage, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastMessages, p.lastModel
}

func (p *fakeProvider) completions(w http.ResponseWriter, r *http.Request) {
	var req providerChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.lastMessages = req.Messages
	p.lastModel = req.Model
	fail := p.failNext
	p.failNext = false
	reply := p.reply
	chunks := p.streamChunks
	abortAfter := p.abortAfter
	p.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"provider exploded","type":"server_error"}}`)
		return
	}

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		if len(chunks) == 0 {
			chunks = []string{reply}
		}
		for i, chunk := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   req.Model,
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"role": "assistant", "content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if abortAfter > 0 && i+1 >= abortAfter {
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
				// drop the connection mid-stream
				panic(http.ErrAbortHandler)
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	payload, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   req.Model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	w.Write(payload)
}

func (p *fakeProvider) images(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	fail := p.failImages
	p.failImages = false
	p.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"provider exploded","type":"server_error"}}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"created":1,"data":[{"b64_json":"aGVsbG8="}]}`)
}

// newTestServer wires a Server against the fake provider with an in-memory
// usage ledger.
func newTestServer(t *testing.T, provider *fakeProvider) *Server {
	t.Helper()

	conf := config{
		ServerPort:   "8080",
		Model:        "gpt-4o",
		MiniModel:    "gpt-4o-mini",
		ImageModel:   "dall-e-3",
		MasterPrompt: defaultMasterPrompt,
		Temperature:  0.8,
		RateLimit:    100,
	}

	client := openai.NewClient("test-key", "")
	client.SetBaseURL(provider.server.URL)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Usage{}))

	return &Server{
		conf:         conf,
		ai:           client,
		store:        newChatStore(),
		db:           db,
		limiter:      newRateLimiter(conf.RateLimit, time.Minute),
		masterPrompt: conf.MasterPrompt,
	}
}

// postJSON runs a handler against a JSON request body.
func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
