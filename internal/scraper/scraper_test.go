package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func productPage(title, saleLine string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<h1>%s</h1>
<script type="application/ld+json">{"@type":"Event","startDate":"2026-04-18T15:30:00+00:00"}</script>
<p>%s</p>
<img src="/media/catalog/product/cache/600x400/matchup.jpg">
</body></html>`, title, title, saleLine)
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("/kategorien", func(w http.ResponseWriter, r *http.Request) {
		// Single page, no next-page marker.
		fmt.Fprintf(w, `<html><body>
<a href="%s/fc-bayern-muenchen-heimspiel">FC Bayern München - RB Leipzig (Ingolstadt)</a>
<a href="%s/fc-bayern-muenchen-auswaerts">FC Bayern München - VfB Stuttgart (Neckarsulm)</a>
<a href="%s/fc-bayern-muenchen-heimspiel">duplicate link</a>
<a href="%s/irgendwas-anderes">Werksführung</a>
</body></html>`, srv.URL, srv.URL, srv.URL, srv.URL)
	})
	mux.HandleFunc("/fc-bayern-muenchen-heimspiel", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, productPage(
			"FC Bayern München - RB Leipzig (Ingolstadt)",
			"VERKAUFSSTART: Montag, 2. März 2099"))
	})
	mux.HandleFunc("/fc-bayern-muenchen-auswaerts", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, productPage(
			"FC Bayern München - VfB Stuttgart (Neckarsulm)",
			"VERKAUFSSTART: Freitag, 13. Juni 2099"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestScraper(baseURL, locationFilter string) *Scraper {
	return NewScraper(bot.Config{
		BaseURL:        baseURL,
		StoreCode:      "wl_de",
		RequestTimeout: 5 * time.Second,
	}, locationFilter, newTestLogger())
}

func TestFetchGames_LocationFilter(t *testing.T) {
	srv := newCatalogServer(t)
	s := newTestScraper(srv.URL, "Ingolstadt")

	games, err := s.FetchGames(context.Background())
	if err != nil {
		t.Fatalf("FetchGames() failed: %v", err)
	}

	if len(games) != 1 {
		t.Fatalf("Expected 1 Ingolstadt game, got %d", len(games))
	}
	g := games[0]
	if g.Opponent != "RB Leipzig" {
		t.Errorf("Expected opponent RB Leipzig, got %q", g.Opponent)
	}
	if g.Location != "Ingolstadt" {
		t.Errorf("Expected location Ingolstadt, got %q", g.Location)
	}
	if g.ID != "fc-bayern-muenchen-heimspiel" {
		t.Errorf("Expected id from URL slug, got %q", g.ID)
	}
}

func TestFetchGames_AllLocations(t *testing.T) {
	srv := newCatalogServer(t)
	s := newTestScraper(srv.URL, "")

	games, err := s.FetchGames(context.Background())
	if err != nil {
		t.Fatalf("FetchGames() failed: %v", err)
	}

	// The duplicate link must not produce a second entry.
	if len(games) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(games))
	}
}

func TestGameDetails_Parsing(t *testing.T) {
	srv := newCatalogServer(t)
	s := newTestScraper(srv.URL, "")

	game, err := s.gameDetails(context.Background(), srv.URL+"/fc-bayern-muenchen-heimspiel", "")
	if err != nil {
		t.Fatalf("gameDetails() failed: %v", err)
	}

	if game.MatchDate != "2026-04-18" {
		t.Errorf("Expected match date 2026-04-18, got %q", game.MatchDate)
	}
	if game.MatchTime != "15:30" {
		t.Errorf("Expected match time 15:30, got %q", game.MatchTime)
	}
	if game.SaleDate != "2099-03-02" {
		t.Errorf("Expected sale date 2099-03-02, got %q", game.SaleDate)
	}
	if game.SaleTime != "07:00" {
		t.Errorf("Expected default sale time 07:00, got %q", game.SaleTime)
	}
	if game.Status != GameStatusUpcoming {
		t.Errorf("Future sale date should be upcoming, got %q", game.Status)
	}
	if game.ImageURL == "" {
		t.Error("Expected matchup image to be extracted")
	}
}

func TestGameDetails_SoldOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/spiel", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
<h1>FC Bayern München - BVB (Ingolstadt)</h1>
<p>VERKAUFSSTART: Montag, 5. Januar 2020</p>
<p>Leider ausverkauft!</p>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := newTestScraper(srv.URL, "")
	game, err := s.gameDetails(context.Background(), srv.URL+"/spiel", "")
	if err != nil {
		t.Fatalf("gameDetails() failed: %v", err)
	}

	if game.Status != GameStatusSoldOut {
		t.Errorf("Expected sold_out, got %q", game.Status)
	}
	if game.IsAvailable {
		t.Error("Sold out game must not be available")
	}
}

func TestParseGermanDate(t *testing.T) {
	cases := []struct {
		day, month, year string
		want             string
		ok               bool
	}{
		{"2", "März", "2026", "2026-03-02", true},
		{"2", "maerz", "2026", "2026-03-02", true},
		{"13", "Juni", "2099", "2099-06-13", true},
		{"1", "Smarch", "2026", "", false},
	}

	for _, tc := range cases {
		got, ok := parseGermanDate(tc.day, tc.month, tc.year)
		if ok != tc.ok {
			t.Errorf("parseGermanDate(%s %s %s) ok=%v, want %v", tc.day, tc.month, tc.year, ok, tc.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tc.want {
			t.Errorf("parseGermanDate(%s %s %s) = %s, want %s", tc.day, tc.month, tc.year, got.Format("2006-01-02"), tc.want)
		}
	}
}
