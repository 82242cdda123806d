package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/outreach-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPDiscoverer_Discover(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/internal/discovery/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(searchResponse{People: []Person{
			{ID: "p1", Name: "Ada Lovelace", Company: "Analytical", LinkedInURL: "https://www.linkedin.com/in/ada/"},
			{ID: "p2", Name: "Ada Lovelace", LinkedInURL: "https://linkedin.com/in/ADA", Twitter: "https://x.com/ada", RecentActivity: []string{"posted"}},
			{ID: "p3", Name: "Grace Hopper", Instagram: "grace", Email: "grace@example.com"},
			{ID: "p4", Name: "Alan Turing", Email: "alan@example.com"},
		}})
	}))
	defer srv.Close()

	d := NewHTTPDiscoverer(srv.URL+"/", srv.Client(), zap.NewNop())
	targets, err := d.Discover(context.Background(), models.Discovery{Query: "founders", Source: "exa", MaxTargets: 2})
	require.NoError(t, err)

	assert.Equal(t, searchRequest{Query: "founders", Source: "exa", MaxResults: 2}, got)
	require.Len(t, targets, 2)

	ada := targets[0]
	assert.Equal(t, "p1", ada.ID)
	assert.Equal(t, "https://www.linkedin.com/in/ada/", ada.Handles[models.PlatformLinkedIn])
	assert.Equal(t, "@ada", ada.Handles[models.PlatformTwitter])
	assert.Equal(t, "Analytical", ada.Attributes[models.AttrCompany])
	assert.Equal(t, "true", ada.Attributes[models.AttrHasRecentPosts])

	grace := targets[1]
	assert.Equal(t, "@grace", grace.Handles[models.PlatformInstagram])
	assert.Equal(t, "grace@example.com", grace.Handles[models.PlatformEmail])
	_, ok := grace.Attributes[models.AttrHasRecentPosts]
	assert.False(t, ok)
}

func TestHTTPDiscoverer_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewHTTPDiscoverer(srv.URL, srv.Client(), zap.NewNop())
	_, err := d.Discover(context.Background(), models.Discovery{Query: "founders"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDedupe(t *testing.T) {
	people := Dedupe([]Person{
		{ID: "a", Name: "Ada", Email: "ADA@example.com"},
		{ID: "b", Name: "Grace", Company: "Navy"},
		{ID: "c", Name: "ada", Email: "ada@example.com", Title: "Countess"},
		{ID: "d", Name: "grace", Company: "navy", Location: "Arlington"},
		{ID: "e", Name: "Alan"},
	})
	require.Len(t, people, 3)
	assert.Equal(t, "Countess", people[0].Title)
	assert.Equal(t, "Arlington", people[1].Location)
	assert.Equal(t, "e", people[2].ID)
}

func TestHandleFrom(t *testing.T) {
	tests := map[string]string{
		"":                              "",
		"ada":                           "@ada",
		"@ada":                          "@ada",
		"https://twitter.com/ada_dev":   "@ada_dev",
		"https://x.com/@ada?s=20":       "@ada",
		"  https://X.com/Ada/status/1 ": "@Ada",
	}
	for in, want := range tests {
		assert.Equal(t, want, handleFrom(twitterURL, in), "input %q", in)
	}
}
