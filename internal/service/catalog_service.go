package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"keystone/internal/cache"
	"keystone/internal/config"
	"keystone/internal/featureflags"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

//go:embed sponsored_games.yml
var sponsoredGamesYAML []byte

const (
	DefaultPageSize = 10
	MaxPageSize     = 40
	DefaultOrdering = "-rating"
	// Upstream bodies beyond this are rejected.
	maxUpstreamBody = 4 << 20
)

// PopularQuery selects a page of the popular-games listing.
type PopularQuery struct {
	Page      int
	PageSize  int
	Ordering  string
	Publisher string
}

func (q PopularQuery) normalized() PopularQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Ordering = strings.TrimSpace(q.Ordering)
	if q.Ordering == "" {
		q.Ordering = DefaultOrdering
	}
	q.Publisher = strings.TrimSpace(q.Publisher)
	return q
}

func (q PopularQuery) cacheKey() string {
	return cache.CatalogPopularKey(url.Values{
		"p":   {strconv.Itoa(q.Page)},
		"s":   {strconv.Itoa(q.PageSize)},
		"o":   {q.Ordering},
		"pub": {q.Publisher},
	}.Encode())
}

type rawgGame struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	BackgroundImage string  `json:"background_image"`
	Released        string  `json:"released"`
	Rating          float64 `json:"rating"`
	DescriptionRaw  string  `json:"description_raw"`
}

type rawgPage struct {
	Results []rawgGame `json:"results"`
}

// CatalogService serves the sponsored list and proxies RAWG for popular games.
type CatalogService struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	cache    *cache.Cache
	cacheTTL time.Duration
	flags    *featureflags.Manager

	sponsoredOnce sync.Once
	sponsored     []models.Game
	sponsoredErr  error
}

func NewCatalogService(cfg *config.Config, c *cache.Cache, flags *featureflags.Manager) *CatalogService {
	timeout := cfg.CatalogTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CatalogService{
		apiKey:   strings.TrimSpace(cfg.RAWGAPIKey),
		baseURL:  strings.TrimRight(cfg.RAWGBaseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		cache:    c,
		cacheTTL: cfg.CatalogCacheTTL,
		flags:    flags,
	}
}

// Sponsored returns the curated list shipped with the binary.
func (s *CatalogService) Sponsored() ([]models.Game, error) {
	s.sponsoredOnce.Do(func() {
		var games []models.Game
		if err := yaml.Unmarshal(sponsoredGamesYAML, &games); err != nil {
			s.sponsoredErr = models.NewInternalError(fmt.Errorf("parse sponsored games: %w", err))
			return
		}
		s.sponsored = games
	})
	if s.sponsoredErr != nil {
		return nil, s.sponsoredErr
	}
	out := make([]models.Game, len(s.sponsored))
	copy(out, s.sponsored)
	return out, nil
}

// Popular fetches one page from RAWG and reshapes it. Results are cached per query when
// the catalog_cache flag is on.
func (s *CatalogService) Popular(ctx context.Context, q PopularQuery) ([]models.Game, error) {
	if s.apiKey == "" {
		return nil, models.NewMisconfiguredError("RAWG_API_KEY not set")
	}
	q = q.normalized()

	useCache := s.cacheTTL > 0 && s.flags.Enabled(featureflags.CatalogCache, 0)
	key := q.cacheKey()
	if useCache {
		var cached []models.Game
		if s.cache.GetJSON(ctx, key, &cached) {
			observability.CatalogRequests.WithLabelValues("cache").Inc()
			return cached, nil
		}
	}

	games, err := s.fetchPopular(ctx, q)
	if err != nil {
		return nil, err
	}
	observability.CatalogRequests.WithLabelValues("upstream").Inc()
	if useCache {
		s.cache.SetJSON(ctx, key, games, s.cacheTTL)
	}
	return games, nil
}

func (s *CatalogService) fetchPopular(ctx context.Context, q PopularQuery) ([]models.Game, error) {
	ctx, span := observability.StartClientSpan(ctx, "rawg.games",
		attribute.Int("catalog.page", q.Page),
		attribute.Int("catalog.page_size", q.PageSize),
	)
	defer span.End()

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("ordering", q.Ordering)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Publisher != "" {
		params.Set("publishers", q.Publisher)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/games?"+params.Encode(), nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	observability.CatalogUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RecordError(span, err)
		observability.CatalogRequests.WithLabelValues("error").Inc()
		return nil, models.NewUpstreamError("Failed to fetch from RAWG", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("rawg returned %d", resp.StatusCode)
		observability.RecordError(span, err)
		observability.CatalogRequests.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "catalog upstream rejected request", slog.Int("status", resp.StatusCode))
		return nil, models.NewUpstreamError("Failed to fetch from RAWG", err)
	}

	var page rawgPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUpstreamBody)).Decode(&page); err != nil {
		observability.RecordError(span, err)
		return nil, models.NewUpstreamError("Failed to fetch from RAWG", fmt.Errorf("decode rawg response: %w", err))
	}

	games := make([]models.Game, 0, len(page.Results))
	for _, g := range page.Results {
		games = append(games, models.Game{
			ID:          models.GameID(strconv.FormatInt(g.ID, 10)),
			Name:        g.Name,
			CoverURL:    g.BackgroundImage,
			Released:    g.Released,
			Rating:      g.Rating,
			Description: g.DescriptionRaw,
		})
	}
	return games, nil
}
