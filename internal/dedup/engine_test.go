package dedup

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	coreerrors "github.com/artsradar/opportunity-radar/internal/core/errors"
)

var errStoreDown = errors.New("store unreachable")

// fakeStore is an in-memory Repository. FindRecent applies the recency
// window against the fake's clock, mirroring the real store's query.
type fakeStore struct {
	opportunities []domain.Opportunity
	now           time.Time

	lookupErr error
	recentErr error
}

func (f *fakeStore) FindByURLOrFingerprint(_ context.Context, url, fingerprint string) (*domain.Opportunity, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}

	for i := range f.opportunities {
		if NormalizeURL(f.opportunities[i].URL) == url || f.opportunities[i].SourceHash == fingerprint {
			return &f.opportunities[i], nil
		}
	}

	return nil, nil
}

func (f *fakeStore) FindRecent(_ context.Context, window time.Duration, limit int) ([]domain.Opportunity, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}

	cutoff := f.now.Add(-window)

	var recent []domain.Opportunity

	for _, opp := range f.opportunities {
		if opp.DiscoveredAt.After(cutoff) {
			recent = append(recent, opp)
		}
	}

	// Most recent first, matching the real store's query.
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].DiscoveredAt.After(recent[j].DiscoveredAt)
	})

	if len(recent) > limit {
		recent = recent[:limit]
	}

	return recent, nil
}

func storedOpportunity(id, title, org, url string, deadline time.Time, discoveredAt time.Time) domain.Opportunity {
	opp := domain.Opportunity{
		ID:           id,
		Title:        title,
		Organization: org,
		Description:  "Annual funding round for emerging visual artists nationwide.",
		URL:          url,
		Status:       domain.OpportunityStatusActive,
		DiscoveredAt: discoveredAt,
	}

	if !deadline.IsZero() {
		opp.Deadline = &deadline
	}

	opp.SourceHash = Fingerprint(NormalizeStored(opp))

	return opp
}

func TestCheckDuplicate_IdenticalURL(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "National Arts Council", "https://example.org/grants/2024", deadline, now.Add(-time.Hour)),
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "A totally reworded headline",
		Description:  "Different scrape of the same page with other words.",
		URL:          "https://www.example.org/grants/2024",
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, domain.ActionSourceAdded, result.Action)
	assert.Equal(t, "opp-1", result.ExistingID)
	assert.InDelta(t, 1.0, result.SimilarityScore, 1e-9)
	assert.Equal(t, []string{"url"}, result.MatchedFields, "a reworded page shares the url, not the fingerprint")
}

func TestCheckDuplicate_FingerprintMatch(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "National Arts Council", "https://example.org/grants/2024", deadline, now.Add(-time.Hour)),
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	// Same identity fields, different URL and description: the
	// fingerprint path must catch it without any fuzzy scoring.
	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "VISUAL ARTS GRANT 2024!",
		Organization: "National Arts Council",
		Description:  "Mirror posting scraped from an aggregator site.",
		URL:          "https://aggregator.example.net/item/991",
		Deadline:     &deadline,
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, domain.ActionSourceAdded, result.Action)
	assert.Equal(t, "opp-1", result.ExistingID)
	assert.Equal(t, []string{"fingerprint"}, result.MatchedFields, "a mirror url shares the fingerprint, not the url")
}

func TestCheckDuplicate_FuzzyMatch(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "National Arts Council", "https://example.org/grants/2024", deadline, now.Add(-48*time.Hour)),
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "Visual Arts Grant Program 2024",
		Organization: "National Arts Council",
		Description:  "Submit portfolios before the closing date to qualify.",
		URL:          "https://another-site.example.com/opportunities/42",
		Deadline:     &deadline,
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, domain.ActionDuplicateLinked, result.Action)
	assert.Equal(t, "opp-1", result.ExistingID)
	assert.Greater(t, result.SimilarityScore, 0.85)
	assert.Contains(t, result.MatchedFields, "title")
	assert.Contains(t, result.MatchedFields, "organization")
}

func TestCheckDuplicate_Unrelated(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "Arts Council A", "https://example.org/grants/2024", deadline, now.Add(-time.Hour)),
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "Music Composition Fellowship",
		Organization: "Music Foundation B",
		Description:  "Fellowship for composers of contemporary classical music.",
		URL:          "https://music.example.com/fellowship",
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate)
	assert.Equal(t, domain.ActionNewOpportunity, result.Action)
	assert.NotEmpty(t, result.Hash)
}

func TestCheckDuplicate_OrganizationGate(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "Org A", "https://example.org/grants/2024", deadline, now.Add(-time.Hour)),
		},
	}

	opts := DefaultOptions()
	opts.OrganizationMatchRequired = true
	engine := NewEngine(store, opts, nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "Visual Arts Grant 2024",
		Organization: "Org B",
		Description:  "Annual funding round for emerging visual artists nationwide.",
		URL:          "https://other.example.com/grants",
		Deadline:     &deadline,
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate, "organization mismatch must block the match regardless of title/deadline")
	assert.Equal(t, domain.ActionNewOpportunity, result.Action)
}

func TestCheckDuplicate_RecencyWindowExcludesStale(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			// Discovered 45 days ago: outside the 30-day fuzzy window.
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "National Arts Council", "https://example.org/grants/2024", deadline, now.Add(-45*24*time.Hour)),
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "Visual Arts Grant Program 2024",
		Organization: "National Arts Council",
		Description:  "Submit portfolios before the closing date to qualify.",
		URL:          "https://another-site.example.com/opportunities/42",
		Deadline:     &deadline,
		DiscoveredAt: now,
	})
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate, "records outside the recency window must not be fuzzy-match candidates")
}

func TestCheckDuplicate_ThresholdMonotonicity(t *testing.T) {
	now := time.Now()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			storedOpportunity("opp-1", "Visual Arts Grant 2024", "National Arts Council", "https://example.org/a", deadline, now.Add(-time.Hour)),
			storedOpportunity("opp-2", "Sculpture Residency Spring", "Stone Yard Studios", "https://example.org/b", deadline, now.Add(-2*time.Hour)),
			storedOpportunity("opp-3", "Photography Open Call", "Lens Collective", "https://example.org/c", deadline, now.Add(-3*time.Hour)),
		},
	}

	candidates := []domain.CandidateRecord{
		{
			Title:        "Visual Arts Grant Program 2024",
			Organization: "National Arts Council",
			Description:  "Annual funding round for emerging visual artists nationwide.",
			URL:          "https://x.example.com/1",
			Deadline:     &deadline,
			DiscoveredAt: now,
		},
		{
			Title:        "Sculpture Residency",
			Organization: "Stone Yard Studios",
			Description:  "Residency with studio access and materials budget.",
			URL:          "https://x.example.com/2",
			Deadline:     &deadline,
			DiscoveredAt: now,
		},
		{
			Title:        "Ceramics Workshop Series",
			Organization: "Clay Guild",
			Description:  "Weekly workshop series for beginners and professionals.",
			URL:          "https://x.example.com/3",
			Deadline:     &deadline,
			DiscoveredAt: now,
		},
	}

	duplicatesAt := func(titleThreshold float64) map[string]bool {
		opts := DefaultOptions()
		opts.TitleSimilarityThreshold = titleThreshold
		engine := NewEngine(store, opts, nil)

		found := make(map[string]bool)

		for _, c := range candidates {
			result, err := engine.CheckDuplicate(context.Background(), c)
			require.NoError(t, err)

			if result.IsDuplicate {
				found[c.URL] = true
			}
		}

		return found
	}

	loose := duplicatesAt(0.3)
	strict := duplicatesAt(0.95)

	for url := range strict {
		assert.True(t, loose[url], "stricter thresholds must detect a subset of looser results, %s missing", url)
	}

	assert.LessOrEqual(t, len(strict), len(loose))
}

func TestCheckDuplicate_StoreErrorsPropagate(t *testing.T) {
	now := time.Now()
	valid := domain.CandidateRecord{
		Title:        "Visual Arts Grant 2024",
		Description:  "Annual funding round for emerging visual artists nationwide.",
		URL:          "https://example.org/grants/2024",
		DiscoveredAt: now,
	}

	t.Run("exact lookup failure", func(t *testing.T) {
		engine := NewEngine(&fakeStore{now: now, lookupErr: errStoreDown}, DefaultOptions(), nil)

		_, err := engine.CheckDuplicate(context.Background(), valid)
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("pool fetch failure", func(t *testing.T) {
		engine := NewEngine(&fakeStore{now: now, recentErr: errStoreDown}, DefaultOptions(), nil)

		_, err := engine.CheckDuplicate(context.Background(), valid)
		require.ErrorIs(t, err, errStoreDown, "store errors must never become a false no-duplicate result")
	})
}

func TestCheckDuplicate_Validation(t *testing.T) {
	engine := NewEngine(&fakeStore{now: time.Now()}, DefaultOptions(), nil)

	tests := []struct {
		name      string
		candidate domain.CandidateRecord
		wantErr   error
	}{
		{
			name:      "missing title",
			candidate: domain.CandidateRecord{Description: "A long enough description.", URL: "https://example.org"},
			wantErr:   coreerrors.ErrMissingTitle,
		},
		{
			name:      "missing description",
			candidate: domain.CandidateRecord{Title: "Open Call", Description: "short", URL: "https://example.org"},
			wantErr:   coreerrors.ErrMissingDescription,
		},
		{
			name:      "missing url",
			candidate: domain.CandidateRecord{Title: "Open Call", Description: "A long enough description."},
			wantErr:   coreerrors.ErrMissingURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CheckDuplicate(context.Background(), tt.candidate)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckDuplicate_MalformedPoolEntry(t *testing.T) {
	now := time.Now()

	store := &fakeStore{
		now: now,
		opportunities: []domain.Opportunity{
			// A stored record missing organization and deadline must be
			// scored through the absent sentinels, not abort the scan.
			{
				ID:           "opp-bad",
				Title:        "Visual Arts Grant 2024",
				Description:  "",
				URL:          "https://example.org/old",
				DiscoveredAt: now.Add(-time.Hour),
			},
		},
	}

	engine := NewEngine(store, DefaultOptions(), nil)

	result, err := engine.CheckDuplicate(context.Background(), domain.CandidateRecord{
		Title:        "Ceramics Workshop Series",
		Description:  "Weekly workshop series for beginners and professionals.",
		URL:          "https://example.org/new",
		DiscoveredAt: now,
	})
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
}
