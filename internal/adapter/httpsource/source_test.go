package httpsource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

const listingHTML = `<!DOCTYPE html>
<html><head><title>Index of /queimadas/focos/csv/10min</title></head>
<body>
<h1>Index of /queimadas/focos/csv/10min</h1>
<table>
<tr><td><a href="../">Parent Directory</a></td></tr>
<tr><td><a href="focos_10min_20240820_1420.csv">focos_10min_20240820_1420.csv</a></td></tr>
<tr><td><a href="focos_10min_20240820_1430.csv">focos_10min_20240820_1430.csv</a></td></tr>
<tr><td><a href="focos_10min_20240820_1410.csv">focos_10min_20240820_1410.csv</a></td></tr>
<tr><td><a href="README.txt">README.txt</a></td></tr>
</table>
</body></html>`

const batchCSV = "lat,lon,satelite,data_hora\n-3.0,-60.0,AQUA_M-T,2024-08-20 14:30:00\n-3.01,-60.01,AQUA_M-T,2024-08-20 14:30:00\n"

func newSource(endpoint string) *Source {
	return New(endpoint, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSource_Listing(t *testing.T) {
	var (
		mu      sync.Mutex
		fetched []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/focos/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetched = append(fetched, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/focos/" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, listingHTML)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, batchCSV)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	batch, err := newSource(srv.URL + "/focos/").FetchLatestBatch(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/focos/", "/focos/focos_10min_20240820_1430.csv"}, fetched)
	assert.Equal(t, srv.URL+"/focos/focos_10min_20240820_1430.csv", batch.Source)
	assert.Len(t, batch.Rows, 2)
}

func TestSource_DirectCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Servers often send CSV as application/octet-stream; the extension decides.
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, batchCSV)
	}))
	defer srv.Close()

	batch, err := newSource(srv.URL + "/latest.csv").FetchLatestBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 2)
}

func TestSource_ListingWithoutCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body><a href="README.txt">README</a></body></html>`)
	}))
	defer srv.Close()

	_, err := newSource(srv.URL).FetchLatestBatch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInputUnavailable)
}

func TestSource_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newSource(srv.URL + "/focos.csv").FetchLatestBatch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInputUnavailable)
}

func TestSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newSource(srv.URL + "/focos.csv").FetchLatestBatch(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInputUnavailable))
	assert.Contains(t, err.Error(), "500")
}

func TestSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := newSource(endpoint).FetchLatestBatch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInputUnavailable)
}

func TestLatestCSVLink(t *testing.T) {
	base, err := http.NewRequest(http.MethodGet, "https://example.org/queimadas/10min/", nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"relative", `<a href="a_20240101.csv">x</a><a href="a_20240102.csv">y</a>`, "https://example.org/queimadas/10min/a_20240102.csv"},
		{"absolute", `<a href="https://mirror.example.org/f_1.CSV">x</a>`, "https://mirror.example.org/f_1.CSV"},
		{"query string", `<a href="dl/f_2.csv?raw=1">x</a>`, "https://example.org/queimadas/10min/dl/f_2.csv?raw=1"},
		{"none", `<p>empty</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := latestCSVLink(strings.NewReader(tt.doc), base.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "doc %q", tt.doc)
		})
	}
}
