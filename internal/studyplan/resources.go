package studyplan

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Resource kinds.
const (
	KindArticle      = "article"
	KindPracticeTest = "practice_test"
	KindCheatsheet   = "cheatsheet"
	KindSummary      = "summary"
)

// Resource is a reading or practice item linked from the schedule.
type Resource struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	Kind             string `json:"kind"`
	Source           string `json:"source,omitempty"`
	Description      string `json:"description,omitempty"`
	Topic            string `json:"topic,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
}

// Finder looks up resources of one source type ("academic", "tutorials",
// "blogs", "practice_tests", "cheatsheets", "summaries").
type Finder interface {
	Find(ctx context.Context, sourceType, subject string, topics []string) ([]Resource, error)
}

// ResourceConfig limits resource collection.
type ResourceConfig struct {
	ArticleLimit   int
	ArticleSources []string
	FreeLimit      int
	FreeTypes      []string
	Workers        int
}

// DefaultResourceConfig returns three articles by academic, tutorial and
// blog priority and three free resources fetched by three workers.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		ArticleLimit:   3,
		ArticleSources: []string{"academic", "tutorials", "blogs"},
		FreeLimit:      3,
		FreeTypes:      []string{"practice_tests", "cheatsheets", "summaries"},
		Workers:        3,
	}
}

// Collector gathers articles and free resources for a plan.
type Collector struct {
	finder Finder
	cfg    ResourceConfig
}

// NewCollector creates a Collector. Zero config fields take defaults.
func NewCollector(finder Finder, cfg ResourceConfig) *Collector {
	def := DefaultResourceConfig()
	if cfg.ArticleLimit <= 0 {
		cfg.ArticleLimit = def.ArticleLimit
	}
	if len(cfg.ArticleSources) == 0 {
		cfg.ArticleSources = def.ArticleSources
	}
	if cfg.FreeLimit <= 0 {
		cfg.FreeLimit = def.FreeLimit
	}
	if len(cfg.FreeTypes) == 0 {
		cfg.FreeTypes = def.FreeTypes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Collector{finder: finder, cfg: cfg}
}

// Articles walks the article sources in priority order until the limit is
// reached. Failing sources are logged and skipped.
func (c *Collector) Articles(ctx context.Context, subject string, topics []string) []Resource {
	var out []Resource
	for _, source := range c.cfg.ArticleSources {
		found, err := c.finder.Find(ctx, source, subject, topics)
		if err != nil {
			slog.Warn("article lookup failed", "source", source, "error", err)
			continue
		}
		out = append(out, found...)
		if len(out) >= c.cfg.ArticleLimit {
			break
		}
	}
	if len(out) > c.cfg.ArticleLimit {
		out = out[:c.cfg.ArticleLimit]
	}
	return out
}

// FreeResources fetches every free resource type in parallel and
// concatenates the results in completion order.
func (c *Collector) FreeResources(ctx context.Context, subject string, topics []string) []Resource {
	var (
		mu  sync.Mutex
		out []Resource
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, typ := range c.cfg.FreeTypes {
		g.Go(func() error {
			found, err := c.finder.Find(gctx, typ, subject, topics)
			if err != nil {
				slog.Warn("free resource lookup failed", "type", typ, "error", err)
				return nil
			}
			mu.Lock()
			out = append(out, found...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(out) > c.cfg.FreeLimit {
		out = out[:c.cfg.FreeLimit]
	}
	return out
}

// SearchLinks is a Finder that builds web-search links instead of calling a
// content API.
type SearchLinks struct{}

func (SearchLinks) Find(_ context.Context, sourceType, subject string, topics []string) ([]Resource, error) {
	first := subject
	if len(topics) > 0 {
		first = topics[0]
	}
	switch sourceType {
	case "academic":
		return perTopic(topics, 2, func(t string) Resource {
			return Resource{
				Title:            "Academic article on " + t,
				URL:              scholarURL(t + " " + subject),
				Kind:             KindArticle,
				Source:           "Google Scholar",
				Description:      fmt.Sprintf("Academic article covering %s for exam preparation.", t),
				Topic:            t,
				EstimatedMinutes: 15,
			}
		}), nil
	case "tutorials":
		return perTopic(topics, 2, func(t string) Resource {
			return Resource{
				Title:            "Tutorial on " + t,
				URL:              searchURL(t + " " + subject + " tutorial"),
				Kind:             KindArticle,
				Source:           "Tutorial site",
				Description:      fmt.Sprintf("Step-by-step tutorial covering %s for exam preparation.", t),
				Topic:            t,
				EstimatedMinutes: 10,
			}
		}), nil
	case "blogs":
		return []Resource{{
			Title:            "Guide to " + subject,
			URL:              searchURL(subject + " exam study guide"),
			Kind:             KindArticle,
			Source:           "Educational blog",
			Description:      "Comprehensive guide covering essential exam topics.",
			EstimatedMinutes: 8,
		}}, nil
	case "practice_tests":
		return []Resource{{
			Title:            "Practice Test for " + first,
			URL:              searchURL(first + " " + subject + " practice questions"),
			Kind:             KindPracticeTest,
			Description:      fmt.Sprintf("Exam-style questions focused on %s.", first),
			Topic:            first,
			EstimatedMinutes: 20,
		}}, nil
	case "cheatsheets":
		return []Resource{{
			Title:            "Cheatsheet for " + subject,
			URL:              searchURL(subject + " cheat sheet formulas"),
			Kind:             KindCheatsheet,
			Description:      "Quick reference guide with key formulas and concepts.",
			EstimatedMinutes: 5,
		}}, nil
	case "summaries":
		return []Resource{{
			Title:            "Study Summary for " + subject,
			URL:              searchURL(subject + " summary notes"),
			Kind:             KindSummary,
			Description:      fmt.Sprintf("Concise summary of key concepts in %s.", subject),
			EstimatedMinutes: 10,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown resource type %q", sourceType)
	}
}

func perTopic(topics []string, n int, build func(string) Resource) []Resource {
	var out []Resource
	for _, t := range topics {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, build(t))
		if len(out) == n {
			break
		}
	}
	return out
}

func searchURL(q string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}

func scholarURL(q string) string {
	return "https://scholar.google.com/scholar?q=" + url.QueryEscape(q)
}
