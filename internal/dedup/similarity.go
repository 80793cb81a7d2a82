package dedup

import (
	"math"
	"strings"
	"time"
)

const (
	// neutralFactor is the factor used when a field is absent on both
	// sides: missing data should neither confirm nor disqualify a match.
	neutralFactor = 0.5

	// halfAbsentFactor is used when exactly one side is missing the
	// field, which is weak evidence against a match but not conclusive.
	halfAbsentFactor = 0.25

	// orgFullMatchMin is the organization factor treated as a full match
	// for the OrganizationMatchRequired hard gate.
	orgFullMatchMin = 0.9

	// matchedFieldMin is the per-factor score above which a field is
	// reported as having contributed to a duplicate decision.
	matchedFieldMin = 0.75

	minTokenLength = 1
	shingleSize    = 2
)

// Default scoring configuration. The thresholds and weights mirror the
// values the service has been tuned with in production; treat them as
// configuration defaults, not constants to re-derive.
const (
	DefaultSimilarityThreshold  = 0.85
	DefaultTitleThreshold       = 0.5
	DefaultDescriptionThreshold = 0.0
	DefaultFuzzyWindow          = 30 * 24 * time.Hour
	DefaultFuzzyPoolLimit       = 200
	DefaultDeadlineDecayDays    = 14
)

// SimilarityFactors holds the per-field similarity components, each in [0,1].
// They are transient: consumed immediately to produce an overall score and
// never persisted directly.
type SimilarityFactors struct {
	Title        float64
	Organization float64
	Deadline     float64
	Description  float64
}

// Weights combines the four factors into one score. They must sum to 1.0;
// title and organization carry more signal than free-text description.
type Weights struct {
	Title        float64
	Organization float64
	Deadline     float64
	Description  float64
}

// DefaultWeights returns the production default factor weights.
func DefaultWeights() Weights {
	return Weights{
		Title:        0.45,
		Organization: 0.30,
		Deadline:     0.15,
		Description:  0.10,
	}
}

// Options configures similarity scoring and duplicate decisions.
type Options struct {
	// SimilarityThreshold is the minimum overall score for a fuzzy match.
	SimilarityThreshold float64

	// TitleSimilarityThreshold is a per-field gate: candidates whose
	// title factor falls below it never fuzzy-match, regardless of the
	// overall score.
	TitleSimilarityThreshold float64

	// DescriptionSimilarityThreshold is the equivalent gate for the
	// description factor. Zero disables it.
	DescriptionSimilarityThreshold float64

	// OrganizationMatchRequired forces the overall score to zero unless
	// the organization factor is a full or near-full match. This is a
	// hard gate, not a weight adjustment.
	OrganizationMatchRequired bool

	// DeadlineDecayDays is the window over which deadline similarity
	// decays linearly from 1 to 0.
	DeadlineDecayDays int

	// FuzzyWindow bounds how far back the fuzzy candidate pool reaches.
	// An opportunity re-posted outside the window is plausibly a new
	// instance, not a duplicate.
	FuzzyWindow time.Duration

	// FuzzyPoolLimit bounds the candidate pool size per decision.
	FuzzyPoolLimit int

	Weights Weights
}

// DefaultOptions returns the production default scoring options.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:            DefaultSimilarityThreshold,
		TitleSimilarityThreshold:       DefaultTitleThreshold,
		DescriptionSimilarityThreshold: DefaultDescriptionThreshold,
		DeadlineDecayDays:              DefaultDeadlineDecayDays,
		FuzzyWindow:                    DefaultFuzzyWindow,
		FuzzyPoolLimit:                 DefaultFuzzyPoolLimit,
		Weights:                        DefaultWeights(),
	}
}

// Scorer computes per-field similarity factors and combines them into an
// overall score. It holds configuration only and is safe for concurrent use.
type Scorer struct {
	opts Options
}

// NewScorer creates a scorer with the given options. Zero-valued weights
// fall back to the defaults so a partially filled Options stays usable.
func NewScorer(opts Options) *Scorer {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	if opts.DeadlineDecayDays <= 0 {
		opts.DeadlineDecayDays = DefaultDeadlineDecayDays
	}

	return &Scorer{opts: opts}
}

// Factors computes the per-field similarity factors between two normalized
// records. Symmetric: Factors(a, b) equals Factors(b, a).
func (s *Scorer) Factors(a, b NormalizedFields) SimilarityFactors {
	return SimilarityFactors{
		Title:        titleSimilarity(a.Title, b.Title),
		Organization: organizationSimilarity(a, b),
		Deadline:     s.deadlineSimilarity(a, b),
		Description:  descriptionSimilarity(a.Description, b.Description),
	}
}

// Overall combines factors into a weighted score in [0,1]. When
// OrganizationMatchRequired is set and the organization factor is below a
// near-full match, the result is 0 regardless of the other factors.
func (s *Scorer) Overall(factors SimilarityFactors) float64 {
	if s.opts.OrganizationMatchRequired && factors.Organization < orgFullMatchMin {
		return 0
	}

	w := s.opts.Weights

	score := factors.Title*w.Title +
		factors.Organization*w.Organization +
		factors.Deadline*w.Deadline +
		factors.Description*w.Description

	return math.Min(1, math.Max(0, score))
}

// MatchedFields reports which factors contributed to a duplicate decision,
// for persistence on the duplicate link.
func MatchedFields(factors SimilarityFactors) []string {
	var matched []string

	if factors.Title >= matchedFieldMin {
		matched = append(matched, "title")
	}

	if factors.Organization >= matchedFieldMin {
		matched = append(matched, "organization")
	}

	if factors.Deadline >= matchedFieldMin {
		matched = append(matched, "deadline")
	}

	if factors.Description >= matchedFieldMin {
		matched = append(matched, "description")
	}

	return matched
}

// titleSimilarity blends token Jaccard with containment so that a title
// extended by a few words ("... - Applications Open") still scores high.
func titleSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return neutralFactor
	}

	if a == b {
		return 1
	}

	tokensA := tokenize(a)
	tokensB := tokenize(b)

	jac := jaccard(tokensA, tokensB)
	con := containment(tokensA, tokensB)

	return (jac + con) / 2
}

func organizationSimilarity(a, b NormalizedFields) float64 {
	if !a.HasOrganization && !b.HasOrganization {
		return neutralFactor
	}

	if a.HasOrganization != b.HasOrganization {
		return halfAbsentFactor
	}

	if a.Organization == b.Organization {
		return 1
	}

	return jaccard(tokenize(a.Organization), tokenize(b.Organization))
}

func (s *Scorer) deadlineSimilarity(a, b NormalizedFields) float64 {
	if !a.HasDeadline && !b.HasDeadline {
		return neutralFactor
	}

	if a.HasDeadline != b.HasDeadline {
		return halfAbsentFactor
	}

	days := math.Abs(a.Deadline.Sub(b.Deadline).Hours()) / 24
	decay := float64(s.opts.DeadlineDecayDays)

	if days >= decay {
		return 0
	}

	return 1 - days/decay
}

// descriptionSimilarity compares word-bigram shingle sets over the full
// normalized text. No truncation: long descriptions keep their
// distinguishing content.
func descriptionSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return neutralFactor
	}

	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return 1
	}

	return jaccard(shingles(a, shingleSize), shingles(b, shingleSize))
}

func tokenize(text string) map[string]struct{} {
	parts := strings.Fields(text)
	tokens := make(map[string]struct{}, len(parts))

	for _, p := range parts {
		if len(p) < minTokenLength {
			continue
		}

		tokens[p] = struct{}{}
	}

	return tokens
}

// shingles returns the set of n-word shingles of the text. Texts shorter
// than n words fall back to single-token shingles.
func shingles(text string, n int) map[string]struct{} {
	words := strings.Fields(text)
	set := make(map[string]struct{})

	if len(words) < n {
		for _, w := range words {
			set[w] = struct{}{}
		}

		return set
	}

	for i := 0; i+n <= len(words); i++ {
		set[strings.Join(words[i:i+n], " ")] = struct{}{}
	}

	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0

	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// containment is the intersection over the smaller set, which is 1.0 when
// one token set fully contains the other.
func containment(a, b map[string]struct{}) float64 {
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}

	if smaller == 0 {
		return 0
	}

	intersection := 0

	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}

	return float64(intersection) / float64(smaller)
}
