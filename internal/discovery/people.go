// Package discovery turns a campaign's discovery query into targets by asking a search service
// for people and folding its answer into deduplicated targets.
package discovery

import (
	"regexp"
	"strings"

	"github.com/outreach-hub/backend/internal/models"
)

// Person is one search hit as the discovery service reports it.
type Person struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Title          string   `json:"title,omitempty"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	LinkedInURL    string   `json:"linkedin_url,omitempty"`
	Twitter        string   `json:"twitter,omitempty"`
	Instagram      string   `json:"instagram,omitempty"`
	Email          string   `json:"email,omitempty"`
	RecentActivity []string `json:"recent_activity,omitempty"`
}

var (
	twitterURL   = regexp.MustCompile(`(?i)(?:twitter\.com|x\.com)/(@?\w+)`)
	instagramURL = regexp.MustCompile(`(?i)instagram\.com/(@?\w+)`)
	linkedinSlug = regexp.MustCompile(`linkedin\.com/in/([^/?]+)`)
)

// handleFrom extracts an @handle from a profile URL or a bare handle.
func handleFrom(re *regexp.Regexp, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if m := re.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if strings.HasPrefix(text, "@") {
		return text
	}
	return "@" + text
}

// normalizeLinkedIn reduces a profile URL to its /in/ slug for comparison.
func normalizeLinkedIn(url string) string {
	url = strings.TrimRight(strings.ToLower(strings.TrimSpace(url)), "/")
	if m := linkedinSlug.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return url
}

func (p Person) sameAs(o Person) bool {
	if p.LinkedInURL != "" && o.LinkedInURL != "" && normalizeLinkedIn(p.LinkedInURL) == normalizeLinkedIn(o.LinkedInURL) {
		return true
	}
	if p.Email != "" && o.Email != "" && strings.EqualFold(p.Email, o.Email) {
		return true
	}
	return p.Name != "" && p.Company != "" &&
		strings.EqualFold(p.Name, o.Name) && strings.EqualFold(p.Company, o.Company)
}

// merge fills p's empty fields from o.
func (p *Person) merge(o Person) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.Title, o.Title)
	fill(&p.Company, o.Company)
	fill(&p.Location, o.Location)
	fill(&p.LinkedInURL, o.LinkedInURL)
	fill(&p.Twitter, o.Twitter)
	fill(&p.Instagram, o.Instagram)
	fill(&p.Email, o.Email)
	p.RecentActivity = append(p.RecentActivity, o.RecentActivity...)
}

// Dedupe merges hits that refer to the same person, keeping first-seen order.
func Dedupe(people []Person) []Person {
	out := make([]Person, 0, len(people))
	for _, p := range people {
		merged := false
		for i := range out {
			if out[i].sameAs(p) {
				out[i].merge(p)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, p)
		}
	}
	return out
}

// ToTarget maps a person onto a campaign target.
func (p Person) ToTarget() models.Target {
	t := models.Target{
		ID:         p.ID,
		Name:       p.Name,
		Handles:    map[string]string{},
		Attributes: map[string]string{},
	}
	if p.LinkedInURL != "" {
		t.Handles[models.PlatformLinkedIn] = p.LinkedInURL
	}
	if h := handleFrom(twitterURL, p.Twitter); h != "" {
		t.Handles[models.PlatformTwitter] = h
	}
	if h := handleFrom(instagramURL, p.Instagram); h != "" {
		t.Handles[models.PlatformInstagram] = h
	}
	if p.Email != "" {
		t.Handles[models.PlatformEmail] = p.Email
	}
	for key, v := range map[string]string{models.AttrTitle: p.Title, models.AttrCompany: p.Company, models.AttrLocation: p.Location} {
		if v != "" {
			t.Attributes[key] = v
		}
	}
	if len(p.RecentActivity) > 0 {
		t.Attributes[models.AttrHasRecentPosts] = "true"
	}
	return t
}
