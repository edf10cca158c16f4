package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/pkmprice/internal/config"
	"github.com/guarzo/pkmprice/internal/model"
	"github.com/guarzo/pkmprice/internal/pricelist"
	"github.com/guarzo/pkmprice/internal/sets"
	"github.com/guarzo/pkmprice/internal/store"
	"github.com/guarzo/pkmprice/internal/testutil"
)

type result struct {
	stdout, stderr bytes.Buffer
	err            error
}

// invoke runs the CLI against baseURL with a clean environment.
func invoke(t *testing.T, baseURL string, args ...string) *result {
	t.Helper()
	for _, k := range []string{config.APIKeyEnv, "PKMPRICE_API_KEY", "PKMPRICE_DATABASE_DSN", "PKMPRICE_WORKERS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv(config.APIKeyEnv, "test-key")
	t.Chdir(t.TempDir())

	if baseURL != "" && len(args) > 0 {
		args = append(args, "--base-url", baseURL, "--retries", "0", "--quiet")
	}
	r := &result{}
	r.err = run(context.Background(), args, &r.stdout, &r.stderr)
	return r
}

func writePricingFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPrice(t *testing.T) {
	srv, cat := testutil.NewCatalogServer(t,
		testutil.NewCard("sv1-123", "Pikachu ex", testutil.WithTCGPlayerNormal(testutil.Float(4.5), nil, nil, nil)),
		testutil.NewCard("sv2-10", "Charizard", testutil.WithCardmarket(nil, testutil.Float(20), nil)),
	)
	cat.Fail("sv3-7", http.StatusInternalServerError)

	file := writePricingFile(t, "'Pikachu ex' SVI 123\n# comment\n'Charizard' PAL 10\n'Missing' SVI 99\n'Broken' OBF 7\n")
	out := filepath.Join(t.TempDir(), "prices.txt")

	r := invoke(t, srv.URL, "price", file, "--output", out)
	require.NoError(t, r.err, r.stderr.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Pikachu ex sv1-123 123 4.5\nCharizard sv2-10 10 20\n", string(data))

	assert.Contains(t, r.stdout.String(), "priced 2 of 4 cards (0 without price data, 1 not found, 1 failed)")
	assert.Contains(t, r.stdout.String(), "line 4 sv1-99: fetch")
	assert.Contains(t, r.stdout.String(), "line 5 sv3-7: fetch")
	assert.Equal(t, 4, cat.Hits())
}

func TestPriceUnknownSetCodeIssuesNoRequests(t *testing.T) {
	srv, cat := testutil.NewCatalogServer(t)
	file := writePricingFile(t, "'Pikachu ex' SVI 123\n# comment\n'Charizard' ZZZ 4\n")

	dir := t.TempDir()
	out := filepath.Join(dir, "p.txt")
	dbPath := filepath.Join(dir, "prices.db")

	r := invoke(t, srv.URL, "price", file, "--output", out, "--db", store.SQLiteScheme+dbPath)

	var codeErr *pricelist.SetCodeError
	require.ErrorAs(t, r.err, &codeErr)
	assert.Equal(t, "ZZZ", codeErr.Code)
	assert.ErrorIs(t, r.err, pricelist.ErrSetCodeNotResolved)
	assert.Zero(t, cat.Hits())

	// Nothing is opened before the file parses.
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, dbPath)
}

func TestPriceMissingFile(t *testing.T) {
	srv, _ := testutil.NewCatalogServer(t)
	r := invoke(t, srv.URL, "price", filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, r.err, pricelist.ErrInputNotFound)
}

func TestPriceRequiresAPIKey(t *testing.T) {
	srv, cat := testutil.NewCatalogServer(t)
	file := writePricingFile(t, "'Pikachu ex' SVI 123\n")

	t.Setenv(config.APIKeyEnv, "")
	os.Unsetenv(config.APIKeyEnv)
	r := &result{}
	r.err = run(context.Background(), []string{"price", file, "--base-url", srv.URL}, &r.stdout, &r.stderr)

	assert.ErrorIs(t, r.err, config.ErrAPIKeyMissing)
	assert.Zero(t, cat.Hits())
}

func TestCard(t *testing.T) {
	srv, _ := testutil.NewCatalogServer(t,
		testutil.NewCard("sv1-123", "Pikachu ex", testutil.WithCardmarket(testutil.Float(3.25), nil, nil)))

	r := invoke(t, srv.URL, "card", "sv1-123")
	require.NoError(t, r.err)
	assert.Equal(t, "Pikachu ex sv1-123 123 3.25\nsource: cardmarket.averageSellPrice\n", r.stdout.String())

	r = invoke(t, srv.URL, "card", "sv9-9")
	assert.Error(t, r.err)
}

func TestSetsWritesMappings(t *testing.T) {
	srv, cat := testutil.NewCatalogServer(t)
	cat.AddSets(
		model.Set{ID: "sv1", Name: "Scarlet & Violet", PtcgoCode: "SVI"},
		model.Set{ID: "sv2", Name: "Paldea Evolved", PtcgoCode: "PAL"},
		model.Set{ID: "svp", Name: "Black Star Promos"},
	)
	path := filepath.Join(t.TempDir(), "maps", "catalog"+sets.MappingSuffix)

	r := invoke(t, srv.URL, "sets", "--write-mappings", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout.String(), "Paldea Evolved")
	assert.Contains(t, r.stdout.String(), "wrote 2 mappings")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var mappings []sets.Mapping
	require.NoError(t, json.Unmarshal(data, &mappings))
	assert.Len(t, mappings, 2)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkmprice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\npath_to_dump_prices: out.txt\n"), 0o644))

	r := invoke(t, "", "config", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout.String(), "path_to_dump_prices")
	assert.Contains(t, r.stdout.String(), "out.txt")
	assert.Contains(t, r.stdout.String(), "****-key")
	assert.NotContains(t, r.stdout.String(), "test-key")
}

func TestConfigCommandInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkmprice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))

	r := invoke(t, "", "config", path)
	assert.ErrorIs(t, r.err, config.ErrInvalid)
}

func TestDatabaseCommandsNeedDSN(t *testing.T) {
	for _, args := range [][]string{{"history", "sv1-1"}, {"export", "--format", "csv"}} {
		r := invoke(t, "", args...)
		assert.ErrorIs(t, r.err, errNoDatabase, args[0])
	}
}

func TestHistoryAndExportFromDatabase(t *testing.T) {
	srv, _ := testutil.NewCatalogServer(t,
		testutil.NewCard("sv1-123", "Pikachu ex", testutil.WithTCGPlayerNormal(testutil.Float(4.5), nil, nil, nil)))
	file := writePricingFile(t, "'Pikachu ex' SVI 123\n")
	dsn := testutil.SQLiteDSN(t)

	// Two runs append two rows for the same card.
	for range 2 {
		r := invoke(t, srv.URL, "price", file, "--output", filepath.Join(t.TempDir(), "p.txt"), "--db", dsn)
		require.NoError(t, r.err, r.stderr.String())
	}

	r := invoke(t, "", "history", "sv1-123", "--db", dsn)
	require.NoError(t, r.err)
	lines := strings.Split(strings.TrimSpace(r.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "DATE")
	assert.Contains(t, lines[1], "Pikachu ex")
	assert.Contains(t, lines[2], "4.5")

	r = invoke(t, "", "history", "sv9-9", "--db", dsn)
	require.NoError(t, r.err)
	assert.Equal(t, "no prices stored for sv9-9\n", r.stdout.String())

	out := filepath.Join(t.TempDir(), "prices.csv")
	r = invoke(t, "", "export", "--format", "csv", "--out", out, "--db", dsn)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout.String(), "exported 2 prices")

	rows, err := csv.NewReader(mustOpen(t, out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Pikachu ex", "sv1-123", "123", "4.5"}, rows[1][:4])
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestUsage(t *testing.T) {
	r := invoke(t, "")
	assert.ErrorIs(t, r.err, errUsage)
	assert.Contains(t, r.stdout.String(), "usage: pkmprice")

	r = invoke(t, "", "frobnicate")
	assert.ErrorIs(t, r.err, errUsage)

	r = invoke(t, "", "card", "--help")
	assert.ErrorIs(t, r.err, pflag.ErrHelp)
}
