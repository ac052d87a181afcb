// Package auctiontest provides a stand-in for the auction backend's public
// listing endpoint, for use in tests.
package auctiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// ListingPath is the path served by the stub.
const ListingPath = "/api/public/auctions/"

// ListingQuery is the query the load scenario sends.
const ListingQuery = "status=IN_PROGRESS&page=0&size=10&sort=newest,Desc"

// RecordedRequest is what the stub saw of one incoming request.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	At       time.Time
}

// Server is an httptest.Server answering the listing endpoint with a
// paged body wrapped in the backend's response envelope.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	latency  time.Duration
	items    int
	record   bool
	count    int
	requests []RecordedRequest
}

type Option func(*Server)

// WithStatus sets the status code returned for listing requests.
func WithStatus(code int) Option {
	return func(s *Server) { s.status = code }
}

// WithLatency delays every response by d, or until the client goes away.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithItems sets how many auctions the page holds.
func WithItems(n int) Option {
	return func(s *Server) { s.items = n }
}

// WithoutRecording keeps only the request count, for long-running stubs.
func WithoutRecording() Option {
	return func(s *Server) { s.record = false }
}

// NewServer starts a stub listing server. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := NewUnstartedServer(opts...)
	s.Start()
	return s
}

// NewUnstartedServer returns a stub that is not listening yet. Replace
// Listener before Start to serve on a fixed address.
func NewUnstartedServer(opts ...Option) *Server {
	s := &Server{status: http.StatusOK, items: 3, record: true}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewUnstartedServer(http.HandlerFunc(s.handle))
	return s
}

// ListingURL returns the full URL the scenario targets on this server.
func (s *Server) ListingURL() string {
	return s.URL + ListingPath + "?" + ListingQuery
}

// SetStatus changes the status code for subsequent requests.
func (s *Server) SetStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests were received.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type auction struct {
	ID           int64  `json:"id"`
	ProductName  string `json:"productName"`
	CurrentPrice int64  `json:"currentPrice"`
	Status       string `json:"status"`
	EndTime      string `json:"endTime"`
}

type slice struct {
	Content          []auction `json:"content"`
	Number           int       `json:"number"`
	Size             int       `json:"size"`
	NumberOfElements int       `json:"numberOfElements"`
	First            bool      `json:"first"`
	Last             bool      `json:"last"`
	Empty            bool      `json:"empty"`
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.count++
	if s.record {
		s.requests = append(s.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			At:       time.Now(),
		})
	}
	status, latency, items := s.status, s.latency, s.items
	s.mu.Unlock()

	if r.URL.Path != ListingPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status != http.StatusOK {
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: http.StatusText(status)})
		return
	}
	_ = json.NewEncoder(w).Encode(envelope{
		Success: true,
		Message: "ok",
		Data:    page(r.URL.Query().Get("status"), r.URL.Query().Get("page"), r.URL.Query().Get("size"), items),
	})
}

func page(status, number, size string, items int) slice {
	n, _ := strconv.Atoi(number)
	sz, err := strconv.Atoi(size)
	if err != nil || sz <= 0 {
		sz = 10
	}
	if items > sz {
		items = sz
	}
	content := make([]auction, 0, items)
	for i := 0; i < items; i++ {
		id := int64(n*sz + i + 1)
		content = append(content, auction{
			ID:           id,
			ProductName:  fmt.Sprintf("lot-%d", id),
			CurrentPrice: 10000 * id,
			Status:       status,
			EndTime:      time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
	}
	return slice{
		Content:          content,
		Number:           n,
		Size:             sz,
		NumberOfElements: len(content),
		First:            n == 0,
		Last:             true,
		Empty:            len(content) == 0,
	}
}
