package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/die-net/proxycache/internal/cache"
	"github.com/die-net/proxycache/internal/proxy"
)

type fakeSource struct {
	c *cache.Cache
}

func (f fakeSource) Stats() proxy.Stats {
	return proxy.Stats{Workers: 4, Queued: 1, QueueCap: 16, Cache: f.c.Stats()}
}

func (f fakeSource) Cache() *cache.Cache {
	return f.c
}

func TestHandler(t *testing.T) {
	t.Parallel()

	c := cache.New(2, 64)
	_ = c.Insert("example.com", "/a", []byte("hello"))
	c.Lookup("example.com", "/a")
	c.Lookup("example.com", "/missing")

	srv := httptest.NewServer(NewHandler(fakeSource{c: c}, zerolog.Nop()))
	defer srv.Close()

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/stats")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var st proxy.Stats
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
		if st.Workers != 4 || st.QueueCap != 16 {
			t.Fatalf("stats %+v", st)
		}
		if st.Cache.Hits != 1 || st.Cache.Misses != 1 || st.Cache.Entries != 1 || st.Cache.Bytes != 5 {
			t.Fatalf("cache stats %+v", st.Cache)
		}
	})

	t.Run("cache", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/cache")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var entries []cache.EntryInfo
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Host != "example.com" || entries[0].Path != "/a" || entries[0].Size != 5 {
			t.Fatalf("entries %+v", entries)
		}
	})

	t.Run("pprof", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/pprof/")
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d", resp.StatusCode)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status %d", resp.StatusCode)
		}
	})
}
