// Package analyze fetches bookmarked pages and asks a language model to
// suggest a name and a folder for each, with bounded concurrency.
package analyze

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const (
	DefaultMaxURLs     = 100
	DefaultConcurrency = 10
)

// PageCache stores extracts between calls. *redis.Store implements it.
type PageCache interface {
	GetPage(ctx context.Context, url string, dst any) (bool, error)
	SetPage(ctx context.Context, url string, v any) error
}

// Request is one batch-analyze call.
type Request struct {
	URLs               []string   `json:"urls"`
	ExistingCategories []string   `json:"existingCategories"`
	RenameMode         RenameMode `json:"renameMode"`
	APIConfig          APIConfig  `json:"apiConfig"`
}

// Result is the outcome of one url. Success false always carries Error.
type Result struct {
	URL               string  `json:"url"`
	Success           bool    `json:"success"`
	Title             *string `json:"title"`
	SuggestedName     *string `json:"suggestedName"`
	SuggestedCategory *string `json:"suggestedCategory"`
	IsNewCategory     bool    `json:"isNewCategory"`
	Error             *string `json:"error"`
}

// Report aggregates a batch. Results follow the order of Request.URLs.
type Report struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

type Options struct {
	Concurrency int
	Cache       PageCache // optional
}

type Service struct {
	fetcher     *Fetcher
	classifier  *Classifier
	cache       PageCache
	concurrency int
	logger      logger.Logger
}

func NewService(fetcher *Fetcher, classifier *Classifier, log logger.Logger, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{
		fetcher:     fetcher,
		classifier:  classifier,
		cache:       opts.Cache,
		concurrency: opts.Concurrency,
		logger:      log,
	}
}

// Analyze processes every url with at most the configured number in
// flight. Tasks never fail the group, so one bad url cannot cancel or
// alter the others.
func (s *Service) Analyze(ctx context.Context, req Request) Report {
	start := time.Now()
	results := make([]Result, len(req.URLs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, u := range req.URLs {
		g.Go(func() error {
			results[i] = s.process(ctx, u, req)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			rep.Success++
		}
	}
	rep.Failed = rep.Total - rep.Success

	s.logger.Info("batch analyze completed",
		logger.Int("total", rep.Total),
		logger.Int("success", rep.Success),
		logger.Int("failed", rep.Failed),
		logger.Duration("duration", time.Since(start)))
	return rep
}

func (s *Service) process(ctx context.Context, url string, req Request) (res Result) {
	res.URL = url
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analyze task panicked", logger.String("url", url), logger.Any("panic", r))
			res = failed(url, nil, "internal error")
		}
	}()

	page, err := s.FetchPage(ctx, url)
	if err != nil {
		return failed(url, nil, err.Error())
	}

	sug, err := s.classifier.Classify(ctx, req.APIConfig, page, req.ExistingCategories, req.RenameMode)
	if err != nil {
		return failed(url, &page.Title, err.Error())
	}

	return Result{
		URL:               url,
		Success:           true,
		Title:             &page.Title,
		SuggestedName:     &sug.Name,
		SuggestedCategory: &sug.Category,
		IsNewCategory:     sug.IsNew,
	}
}

// FetchPage returns the extract of url, consulting the cache first when
// one is configured. Cache errors only cost a refetch.
func (s *Service) FetchPage(ctx context.Context, url string) (Page, error) {
	if s.cache != nil {
		var cached Page
		hit, err := s.cache.GetPage(ctx, url, &cached)
		if err != nil {
			s.logger.Warn("page cache read failed", logger.String("url", url), logger.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return Page{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetPage(ctx, url, page); err != nil {
			s.logger.Warn("page cache write failed", logger.String("url", url), logger.Error(err))
		}
	}
	return page, nil
}

func failed(url string, title *string, msg string) Result {
	return Result{URL: url, Title: title, Error: &msg}
}
