package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/guarzo/pkmprice/internal/model"
)

// MySQLDSN returns PKMPRICE_TEST_MYSQL_DSN or skips the test.
func MySQLDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv("PKMPRICE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("PKMPRICE_TEST_MYSQL_DSN not set")
	}
	return dsn
}

// SQLiteDSN returns a DSN for a fresh SQLite file removed with the test.
func SQLiteDSN(t testing.TB) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "prices.db")
}

// Catalog is an in-memory stand-in for the card API. It serves
// /cards/{id} and a paginated /sets.
type Catalog struct {
	mu       sync.Mutex
	cards    map[string]model.Card
	failures map[string]int
	sets     []model.Set
	hits     atomic.Int32
}

// NewCatalogServer starts a catalog serving cards, closed with the test.
func NewCatalogServer(t testing.TB, cards ...model.Card) (*httptest.Server, *Catalog) {
	t.Helper()
	c := &Catalog{cards: map[string]model.Card{}, failures: map[string]int{}}
	for _, card := range cards {
		c.AddCard(card)
	}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return srv, c
}

func (c *Catalog) AddCard(card model.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[card.ID] = card
}

func (c *Catalog) AddSets(sets ...model.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, sets...)
}

// Fail makes every request for card id answer with status.
func (c *Catalog) Fail(id string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[id] = status
}

// Hits counts requests served.
func (c *Catalog) Hits() int {
	return int(c.hits.Load())
}

func (c *Catalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.hits.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/cards/"):
		id := strings.TrimPrefix(r.URL.Path, "/cards/")
		if status, ok := c.failures[id]; ok {
			http.Error(w, `{"error":"forced failure"}`, status)
			return
		}
		card, ok := c.cards[id]
		if !ok {
			http.Error(w, `{"error":{"message":"Not Found","code":404}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"data": card})

	case r.URL.Path == "/sets":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if page < 1 {
			page = 1
		}
		if size < 1 {
			size = 250
		}
		from := min((page-1)*size, len(c.sets))
		to := min(from+size, len(c.sets))
		writeJSON(w, map[string]any{
			"data":       c.sets[from:to],
			"page":       page,
			"pageSize":   size,
			"count":      to - from,
			"totalCount": len(c.sets),
		})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
