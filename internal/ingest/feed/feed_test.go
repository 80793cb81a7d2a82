package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Riverside Arts Center</title>
    <link>https://riverside.example.org</link>
    <description>Open calls and residencies</description>
    <item>
      <title>Spring Residency Open Call</title>
      <link>https://riverside.example.org/calls/spring-residency</link>
      <description>Applications are open. Deadline: March 15, 2026 at midnight.</description>
      <pubDate>Wed, 19 Aug 2026 10:00:00 GMT</pubDate>
      <category>residency</category>
      <category>visual-arts</category>
    </item>
    <item>
      <title>Linkless announcement</title>
      <description>This item has no link and is skipped.</description>
    </item>
  </channel>
</rss>`

func TestFetchParsesFeedItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer server.Close()

	producer := New(Config{URLs: []string{server.URL}, FetchRPS: 100}, nil)

	candidates, err := producer.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	got := candidates[0]
	assert.Equal(t, "Spring Residency Open Call", got.Title)
	assert.Equal(t, "https://riverside.example.org/calls/spring-residency", got.URL)
	assert.Equal(t, "Riverside Arts Center", got.Organization)
	assert.Equal(t, domain.SourceNewsletter, got.SourceType)
	assert.Equal(t, []string{"residency", "visual-arts"}, got.Tags)
	assert.Equal(t, time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC), got.DiscoveredAt)

	require.NotNil(t, got.Deadline)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), got.Deadline.UTC())
}

func TestFetchSkipsFailingFeed(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	defer working.Close()

	producer := New(Config{URLs: []string{broken.URL, working.URL}, FetchRPS: 100}, nil)

	candidates, err := producer.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	defer server.Close()

	producer := New(Config{URLs: []string{server.URL}, FetchRPS: 100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := producer.Fetch(ctx)
	require.Error(t, err)
}

func TestExtractDeadline(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *time.Time
	}{
		{
			name: "plain date after marker",
			text: "Apply now. Deadline: March 15, 2026",
			want: timePtr(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)),
		},
		{
			name: "iso date with dash separator",
			text: "deadline - 2026-03-15",
			want: timePtr(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)),
		},
		{
			name: "trailing prose trimmed until parse succeeds",
			text: "Deadline: June 1, 2026 at midnight local",
			want: timePtr(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			name: "no marker",
			text: "Applications close in spring.",
			want: nil,
		},
		{
			name: "marker without parseable date",
			text: "Deadline: to be announced",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractDeadline(tt.text)

			if tt.want == nil {
				assert.Nil(t, got)

				return
			}

			require.NotNil(t, got)
			assert.Equal(t, *tt.want, got.UTC())
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
