// Package feed implements the RSS/Atom discovery producer. Newsletter
// and blog feeds are the primary automated channel for new open calls.
package feed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	"github.com/artsradar/opportunity-radar/internal/platform/observability"
)

const (
	producerName = "feed"

	fetchStatusOK    = "ok"
	fetchStatusError = "error"

	logFieldFeed = "feed"
)

// deadlinePattern captures the text following a "deadline" marker in an
// item body, to be handed to the date parser.
var deadlinePattern = regexp.MustCompile(`(?i)deadline[:\s\-]*([A-Za-z0-9, /\-]{6,40})`)

// Config configures the feed producer.
type Config struct {
	URLs         []string
	FetchRPS     float64
	FetchTimeout time.Duration
}

// Producer fetches configured feeds and converts their items into
// candidate records.
type Producer struct {
	urls    []string
	parser  *gofeed.Parser
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zerolog.Logger
}

// New creates a feed producer. Fetches across feeds are rate limited to
// cfg.FetchRPS requests per second.
func New(cfg Config, logger *zerolog.Logger) *Producer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	rps := cfg.FetchRPS
	if rps <= 0 {
		rps = 1
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Producer{
		urls:    cfg.URLs,
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		logger:  logger,
	}
}

// Name implements the producer interface.
func (p *Producer) Name() string { return producerName }

// Fetch downloads all configured feeds and returns their items as
// candidates. A single feed failure is logged and skipped so one dead
// feed cannot starve the rest.
func (p *Producer) Fetch(ctx context.Context) ([]domain.CandidateRecord, error) {
	var candidates []domain.CandidateRecord

	for _, url := range p.urls {
		if err := p.limiter.Wait(ctx); err != nil {
			return candidates, fmt.Errorf("feed rate limiter: %w", err)
		}

		items, err := p.fetchOne(ctx, url)
		if err != nil {
			observability.FeedFetches.WithLabelValues(fetchStatusError).Inc()
			p.logger.Warn().Err(err).Str(logFieldFeed, url).Msg("feed fetch failed")

			continue
		}

		observability.FeedFetches.WithLabelValues(fetchStatusOK).Inc()
		candidates = append(candidates, items...)
	}

	return candidates, nil
}

func (p *Producer) fetchOne(ctx context.Context, url string) ([]domain.CandidateRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	parsed, err := p.parser.ParseURLWithContext(url, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	now := time.Now().UTC()
	records := make([]domain.CandidateRecord, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}

		records = append(records, itemToCandidate(parsed, item, now))
	}

	return records, nil
}

func itemToCandidate(feed *gofeed.Feed, item *gofeed.Item, now time.Time) domain.CandidateRecord {
	description := item.Description
	if description == "" {
		description = item.Content
	}

	discovered := now
	if item.PublishedParsed != nil {
		discovered = item.PublishedParsed.UTC()
	}

	return domain.CandidateRecord{
		Title:        strings.TrimSpace(item.Title),
		Description:  strings.TrimSpace(description),
		URL:          item.Link,
		Organization: strings.TrimSpace(feed.Title),
		Deadline:     extractDeadline(description),
		Tags:         item.Categories,
		SourceType:   domain.SourceNewsletter,
		DiscoveredAt: discovered,
	}
}

// extractDeadline pulls an application deadline out of free-form item
// text. The captured span often carries trailing prose, so parsing
// retries with words trimmed from the end until a date parses or the
// span is exhausted.
func extractDeadline(text string) *time.Time {
	match := deadlinePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	span := strings.TrimSpace(match[1])

	for span != "" {
		if parsed, err := dateparse.ParseAny(span); err == nil {
			deadline := parsed.UTC()

			return &deadline
		}

		idx := strings.LastIndexAny(span, " ,")
		if idx < 0 {
			break
		}

		span = strings.TrimRight(span[:idx], " ,")
	}

	return nil
}
