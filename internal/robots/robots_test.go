package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serveRobots(t *testing.T, body string, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			*hits++
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCanFetchAllowed(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /private/\n", nil)
	c := NewChecker("sidelinesync")

	allowed, delay, err := c.CanFetch(context.Background(), srv.URL+"/register/clubsearch")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("public path should be allowed")
	}
	if delay != 0 {
		t.Errorf("delay = %v, want 0", delay)
	}
}

func TestCanFetchDisallowed(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /register/\n", nil)
	c := NewChecker("sidelinesync")

	allowed, _, err := c.CanFetch(context.Background(), srv.URL+"/register/clubsearch")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if allowed {
		t.Error("disallowed path reported as allowed")
	}
}

func TestCrawlDelayPropagates(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nCrawl-delay: 5\n", nil)
	c := NewChecker("sidelinesync")

	_, delay, err := c.CanFetch(context.Background(), srv.URL+"/register/clubsearch")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if delay != 5*time.Second {
		t.Errorf("delay = %v, want 5s", delay)
	}
}

func TestRobotsCachedPerHost(t *testing.T) {
	hits := 0
	srv := serveRobots(t, "User-agent: *\nDisallow:\n", &hits)
	c := NewChecker("sidelinesync")

	ctx := context.Background()
	c.CanFetch(ctx, srv.URL+"/a")
	c.CanFetch(ctx, srv.URL+"/b")
	if hits != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", hits)
	}
}

func TestMissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c := NewChecker("sidelinesync")

	allowed, _, err := c.CanFetch(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("absent robots.txt should allow")
	}
}
