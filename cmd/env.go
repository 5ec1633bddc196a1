package main

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/author"
	"github.com/misintel/misintel/internal/cache"
	"github.com/misintel/misintel/internal/check"
	"github.com/misintel/misintel/internal/config"
	"github.com/misintel/misintel/internal/crisis"
	"github.com/misintel/misintel/internal/evidence"
	"github.com/misintel/misintel/internal/fetcher"
	"github.com/misintel/misintel/internal/llm"
	"github.com/misintel/misintel/internal/monitoring"
	"github.com/misintel/misintel/internal/ocr"
	"github.com/misintel/misintel/internal/resilience"
	"github.com/misintel/misintel/internal/scrape"
	"github.com/misintel/misintel/internal/translate"
	"github.com/misintel/misintel/internal/trending"
	"github.com/misintel/misintel/pkg/customsearch"
	"github.com/misintel/misintel/pkg/factcheck"
	"github.com/misintel/misintel/pkg/jina"
	"github.com/misintel/misintel/pkg/newsapi"
	"github.com/misintel/misintel/pkg/safebrowsing"
	"github.com/misintel/misintel/pkg/speech"
)

// appEnv holds the clients and services needed by the serve, check and
// author commands.
type appEnv struct {
	Store      cache.Store
	Cache      *cache.AnalysisCache
	Metrics    *monitoring.Metrics
	Authors    *author.Extractor
	Speech     speech.Client // nil when no speech key is set
	Trending   *trending.Feed
	Crisis     *crisis.Detector
	Translator *translate.Translator
	Checker    *check.Service
}

// Close releases the cache backend.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured cache backend.
func initStore(ctx context.Context, c *config.Config) (cache.Store, error) {
	switch c.Cache.Driver {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		return cache.NewRedis(ctx, c.Cache.RedisAddr, c.Cache.RedisPassword, c.Cache.RedisDB)
	case "sqlite":
		dsn := c.Cache.DatabaseURL
		if dsn == "" {
			dsn = "misintel.db"
		}
		return cache.NewSQLite(ctx, dsn)
	case "postgres":
		return cache.NewPostgres(ctx, c.Cache.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", c.Cache.Driver)
	}
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// initEnv builds every collaborator of the check pipeline. Optional upstreams
// without keys are left unset and degrade as not configured. Callers should
// defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &appEnv{
		Store: st,
		Cache: cache.NewAnalysisCache(st, time.Duration(c.Cache.BaseTTLHours)*time.Hour),
	}

	env.Metrics, err = monitoring.New()
	if err != nil {
		env.Close()
		return nil, err
	}

	pages := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    secs(c.Fetch.TimeoutSecs),
		MaxRetries: c.Fetch.MaxRetries,
	})

	var jinaClient jina.Client
	if c.Jina.Enabled {
		jinaOpts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL)}
		if c.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		jinaClient = jina.NewClient(c.Jina.Key, jinaOpts...)
	}

	// Local fetch first, Jina Reader for pages that need rendering.
	scrapers := []scrape.Scraper{scrape.NewLocalScraper(pages)}
	if jinaClient != nil {
		scrapers = append(scrapers, scrape.NewJinaAdapter(jinaClient))
	}
	chain := scrape.NewChain(scrapers...)

	breakerCfg := resilience.BreakerConfigFrom(c.Evidence.BreakerThreshold, c.Evidence.BreakerCooldown)
	breakerCfg.OnStateChange = env.Metrics.ObserveBreaker
	breakers := resilience.NewBreakers(breakerCfg)

	var clients evidence.Clients
	if c.Google.FactCheckKey != "" {
		clients.FactCheck = factcheck.NewClient(c.Google.FactCheckKey)
	}
	var search customsearch.Client
	if c.Google.CustomSearchKey != "" && c.Google.CustomSearchCX != "" {
		search = customsearch.NewClient(c.Google.CustomSearchKey, c.Google.CustomSearchCX)
		clients.Search = search
	}
	if c.Google.SafeBrowsingKey != "" {
		clients.Safety = safebrowsing.NewClient(c.Google.SafeBrowsingKey)
	}
	var news newsapi.Client
	if c.News.Key != "" {
		news = newsapi.NewClient(c.News.Key, newsapi.WithBaseURL(c.News.BaseURL))
		clients.News = news
	}
	gatherer := evidence.NewGatherer(clients, breakers,
		evidence.WithTimeout(secs(c.Evidence.TimeoutSecs)),
		evidence.WithObserver(env.Metrics.ObserveEvidence),
	)

	authorOpts := []author.Option{author.WithFetchTimeout(secs(c.Author.FetchTimeoutSecs))}
	if c.Author.ReputationFile != "" {
		rep, err := author.LoadReputation(c.Author.ReputationFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		authorOpts = append(authorOpts, author.WithReputation(rep))
	}
	switch {
	case search != nil:
		authorOpts = append(authorOpts, author.WithSearcher(author.CustomSearch{Client: search}))
	case jinaClient != nil && c.Jina.Key != "":
		authorOpts = append(authorOpts, author.WithSearcher(author.JinaSearch{Client: jinaClient}))
	}
	env.Authors = author.NewExtractor(pages, authorOpts...)

	deps := check.Deps{
		Content:  chain,
		Authors:  env.Authors,
		Evidence: gatherer,
		Cache:    env.Cache,
	}

	aiCfg := llm.Config{
		Provider:  c.AI.Provider,
		APIKey:    c.AI.Key,
		Model:     c.AI.Model,
		BaseURL:   c.AI.BaseURL,
		Timeout:   secs(c.AI.TimeoutSecs),
		MaxTokens: int64(c.AI.MaxTokens),
		Attempts:  c.AI.Attempts,
	}
	var translator llm.Generator
	gen, err := llm.New(aiCfg)
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		zap.L().Warn("MISINTEL_AI_KEY not set, checks will report a configuration error")
	case err != nil:
		env.Close()
		return nil, err
	default:
		deps.Analyzer = analysis.NewAnalyzer(gen)

		temp := translate.Temperature
		aiCfg.MaxTokens = translate.MaxTokens
		aiCfg.System = translate.SystemPrompt
		aiCfg.Temperature = &temp
		if translator, err = llm.New(aiCfg); err != nil {
			env.Close()
			return nil, err
		}
	}
	env.Translator = translate.New(translator, st)

	extractor, err := ocr.NewExtractor(ocr.Config{
		Provider:      c.OCR.Provider,
		TesseractPath: c.OCR.TesseractPath,
		MistralKey:    c.OCR.MistralKey,
		MistralModel:  c.OCR.MistralModel,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	deps.OCR = extractor

	if c.Google.SpeechKey != "" {
		env.Speech = speech.NewClient(c.Google.SpeechKey, speech.WithLanguages(c.Google.SpeechLanguage))
		deps.Speech = env.Speech
	} else {
		zap.L().Debug("MISINTEL_GOOGLE_SPEECH_KEY not set, audio checks disabled")
	}

	env.Trending = trending.New(
		trending.WithBaseURL(c.Trending.BaseURL),
		trending.WithDefaults(c.Trending.HL, c.Trending.GL),
		trending.WithStore(st),
	)
	env.Crisis = crisis.NewDetector(news,
		crisis.WithCountry(c.News.CrisisCountry),
		crisis.WithStore(st),
	)

	env.Checker = check.NewService(deps, check.WithRecorder(env.Metrics))

	zap.L().Info("check pipeline ready",
		zap.String("cache", c.Cache.Driver),
		zap.Bool("analyzer", deps.Analyzer != nil),
		zap.Bool("factcheck", clients.FactCheck != nil),
		zap.Bool("search", clients.Search != nil),
		zap.Bool("safebrowsing", clients.Safety != nil),
		zap.Bool("news", clients.News != nil),
		zap.Bool("translate", translator != nil),
		zap.Bool("speech", env.Speech != nil),
		zap.Bool("jina", jinaClient != nil),
	)
	return env, nil
}
