// Package scraper discovers FC Bayern games in the vendor's category
// catalog and extracts match and sale dates from the product pages.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
)

const (
	maxCatalogPages = 9
	pageDelay       = 500 * time.Millisecond
)

// Game statuses
const (
	GameStatusUpcoming = "upcoming"
	GameStatusOnSale   = "on_sale"
	GameStatusSoldOut  = "sold_out"
)

// Game is one scraped FC Bayern fixture
type Game struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Opponent  string `json:"opponent"`
	Location  string `json:"location"`
	URL       string `json:"url"`
	ImageURL  string `json:"image_url,omitempty"`
	MatchDate string `json:"match_date,omitempty"`
	MatchTime string `json:"match_time,omitempty"`
	SaleDate  string `json:"sale_date,omitempty"`
	// SaleTime is the local time tickets go on sale; the vendor always
	// opens sales at 07:00 German time.
	SaleTime    string `json:"sale_time"`
	IsAvailable bool   `json:"is_available"`
	Status      string `json:"status"`
}

var (
	titlePattern     = regexp.MustCompile(`FC Bayern M(?:ü|ue)nchen\s*-\s*(.+?)\s*\((\w+)\)`)
	startDatePattern = regexp.MustCompile(`"startDate"\s*:\s*"([^"]+)"`)
	// \p{L} instead of \w: German month names carry umlauts
	salePattern = regexp.MustCompile(`(?i)VERKAUFSSTART[:\s]*(\p{L}+),?\s*(\d{1,2})\.?\s*(\p{L}+)\s*(\d{4})`)
)

// German month names as they appear on the vendor pages
var germanMonths = map[string]time.Month{
	"januar": time.January, "februar": time.February,
	"märz": time.March, "maerz": time.March,
	"april": time.April, "mai": time.May, "juni": time.June,
	"juli": time.July, "august": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "dezember": time.December,
}

// Scraper crawls the vendor catalog. It shares the bot's browser
// fingerprint via an embedded availability client.
type Scraper struct {
	baseURL        string
	storeCode      string
	locationFilter string
	http           *http.Client
	avail          *bot.Client
	logger         *logrus.Entry
}

// NewScraper creates a scraper. locationFilter restricts results to one
// venue ("Ingolstadt"); empty means all locations.
func NewScraper(cfg bot.Config, locationFilter string, logger *logrus.Entry) *Scraper {
	return &Scraper{
		baseURL:        cfg.BaseURL,
		storeCode:      cfg.StoreCode,
		locationFilter: locationFilter,
		http:           &http.Client{Timeout: cfg.RequestTimeout},
		avail:          bot.NewClient(cfg, logger),
		logger:         logger.WithField("component", "scraper"),
	}
}

func (s *Scraper) get(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// FetchGames crawls the paginated category listing and resolves details
// for every FC Bayern product found.
func (s *Scraper) FetchGames(ctx context.Context) ([]Game, error) {
	games := make([]Game, 0)
	seen := make(map[string]bool)

	for page := 1; page <= maxCatalogPages; page++ {
		pageURL := fmt.Sprintf("%s/kategorien?___store=%s&p=%d", s.baseURL, s.storeCode, page)
		html, status, err := s.get(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to fetch catalog page: %w", err)
			}
			s.logger.Warnf("Catalog page %d failed: %v", page, err)
			break
		}
		if status != http.StatusOK {
			s.logger.Warnf("Catalog page %d returned status %d", page, status)
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog page: %w", err)
		}

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if !strings.Contains(strings.ToLower(href), "fc-bayern") || seen[href] {
				return
			}
			seen[href] = true

			title := strings.TrimSpace(sel.Text())
			if len(title) < 5 || !strings.Contains(strings.ToLower(title), "fc bayern") {
				title = ""
			}

			game, err := s.gameDetails(ctx, href, title)
			if err != nil {
				s.logger.Warnf("Failed to resolve game details for %s: %v", href, err)
				return
			}
			if s.locationFilter != "" && !strings.EqualFold(game.Location, s.locationFilter) {
				return
			}
			games = append(games, *game)
		})

		// The listing markup carries no reliable "last page" marker; the
		// next-page link is the signal.
		if !strings.Contains(html, fmt.Sprintf("p=%d", page+1)) {
			break
		}

		select {
		case <-ctx.Done():
			return games, ctx.Err()
		case <-time.After(pageDelay):
		}
	}

	s.logger.Infof("Found %d FC Bayern games (location: %s)", len(games), s.filterLabel())
	return games, nil
}

func (s *Scraper) filterLabel() string {
	if s.locationFilter == "" {
		return "all"
	}
	return s.locationFilter
}

// gameDetails fetches a product page and extracts the fixture metadata
func (s *Scraper) gameDetails(ctx context.Context, productURL, title string) (*Game, error) {
	html, status, err := s.get(ctx, productURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("product page returned status %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.TrimRight(productURL, "/"), "/")
	gameID := parts[len(parts)-1]

	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
		if title == "" {
			title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		}
		if title == "" {
			title = titleFromSlug(gameID)
		}
	}

	game := &Game{
		ID:       gameID,
		Title:    title,
		URL:      productURL,
		SaleTime: "07:00",
		Status:   GameStatusUpcoming,
	}

	if m := titlePattern.FindStringSubmatch(title); m != nil {
		game.Opponent = strings.TrimSpace(m[1])
		game.Location = strings.TrimSpace(m[2])
	} else {
		game.Opponent = strings.Trim(strings.ReplaceAll(title, "FC Bayern München", ""), " -")
	}

	if m := startDatePattern.FindStringSubmatch(html); m != nil {
		if dt, err := time.Parse(time.RFC3339, m[1]); err == nil {
			game.MatchDate = dt.Format("2006-01-02")
			game.MatchTime = dt.Format("15:04")
		} else if dt, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(m[1], "+00:00")); err == nil {
			game.MatchDate = dt.Format("2006-01-02")
			game.MatchTime = dt.Format("15:04")
		}
	}

	if m := salePattern.FindStringSubmatch(html); m != nil {
		if sale, ok := parseGermanDate(m[2], m[3], m[4]); ok {
			game.SaleDate = sale.Format("2006-01-02")
		}
	}

	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		if strings.Contains(src, "catalog/product") && strings.Contains(src, "600x400") {
			game.ImageURL = src
			return false
		}
		return true
	})

	s.resolveStatus(ctx, game, html)
	return game, nil
}

// resolveStatus determines whether a game is upcoming, on sale or sold out
func (s *Scraper) resolveStatus(ctx context.Context, game *Game, html string) {
	if game.SaleDate == "" {
		return
	}
	saleDate, err := time.Parse("2006-01-02", game.SaleDate)
	if err != nil || saleDate.After(time.Now().UTC()) {
		return
	}

	lower := strings.ToLower(html)
	if strings.Contains(lower, "ausverkauft") || strings.Contains(lower, "sold out") {
		game.Status = GameStatusSoldOut
		return
	}

	game.Status = GameStatusOnSale
	game.IsAvailable = s.checkAvailability(ctx, game.URL)
}

// checkAvailability probes the availability endpoint for any positive
// quantity. Errors degrade to "not available"; this is a catalog hint,
// not the monitoring loop.
func (s *Scraper) checkAvailability(ctx context.Context, productURL string) bool {
	eventID, ticketID, err := s.avail.ExtractProductIdentifiers(ctx, productURL)
	if err != nil {
		return false
	}
	snap, err := s.avail.FetchAvailability(ctx, eventID, ticketID)
	if err != nil {
		return false
	}
	return snap.TotalAvailable() > 0
}

// titleFromSlug turns a URL slug into a readable fallback title.
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func parseGermanDate(dayStr, monthName, yearStr string) (time.Time, bool) {
	month, ok := germanMonths[strings.ToLower(monthName)]
	if !ok {
		return time.Time{}, false
	}
	var day, year int
	if _, err := fmt.Sscanf(dayStr, "%d", &day); err != nil {
		return time.Time{}, false
	}
	if _, err := fmt.Sscanf(yearStr, "%d", &year); err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
