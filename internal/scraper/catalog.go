package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	catalogKey = "games:catalog"
	catalogTTL = 15 * time.Minute
)

// Catalog caches scraped games in Redis so the API does not hit the
// vendor on every request. A singleflight-style mutex keeps concurrent
// cache misses from triggering parallel crawls.
type Catalog struct {
	scraper *Scraper
	rdb     *redis.Client
	mu      sync.Mutex
	logger  *logrus.Entry
}

// NewCatalog creates a catalog backed by the given scraper and Redis client
func NewCatalog(scraper *Scraper, rdb *redis.Client, logger *logrus.Entry) *Catalog {
	return &Catalog{
		scraper: scraper,
		rdb:     rdb,
		logger:  logger.WithField("component", "games-catalog"),
	}
}

// Games returns the cached game list, refreshing it when the cache is
// cold. A failed refresh falls back to stale cache data if any exists.
func (c *Catalog) Games(ctx context.Context) ([]Game, error) {
	if games, ok := c.cached(ctx); ok {
		return games, nil
	}

	games, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Errorf("Games refresh failed: %v", err)
		if stale, ok := c.cached(ctx); ok {
			return stale, nil
		}
		return nil, err
	}
	return games, nil
}

// Refresh crawls the vendor catalog and replaces the cache
func (c *Catalog) Refresh(ctx context.Context) ([]Game, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	games, err := c.scraper.FetchGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape games: %w", err)
	}

	data, err := json.Marshal(games)
	if err != nil {
		return nil, fmt.Errorf("failed to encode games cache: %w", err)
	}
	if err := c.rdb.Set(ctx, catalogKey, data, catalogTTL).Err(); err != nil {
		// Cache write failure is not fatal; the fresh data is still good.
		c.logger.Warnf("Failed to write games cache: %v", err)
	}

	c.logger.Infof("Refreshed games cache: %d games", len(games))
	return games, nil
}

// FindGame looks up a game by id, refreshing the cache once if the id is
// not present.
func (c *Catalog) FindGame(ctx context.Context, id string) (*Game, error) {
	games, err := c.Games(ctx)
	if err != nil {
		return nil, err
	}
	if g := findByID(games, id); g != nil {
		return g, nil
	}

	games, err = c.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return findByID(games, id), nil
}

func (c *Catalog) cached(ctx context.Context) ([]Game, bool) {
	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warnf("Failed to read games cache: %v", err)
		return nil, false
	}

	var games []Game
	if err := json.Unmarshal(data, &games); err != nil {
		c.logger.Warnf("Corrupt games cache, discarding: %v", err)
		return nil, false
	}
	return games, true
}

func findByID(games []Game, id string) *Game {
	for i := range games {
		if games[i].ID == id {
			return &games[i]
		}
	}
	return nil
}
