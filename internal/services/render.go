package services

import (
	"strings"

	"github.com/outreach-hub/backend/internal/models"
)

// Renderer turns a phase's template reference into the message sent to a target.
type Renderer interface {
	Render(template string, platform string, t *models.Target) (string, error)
}

// PlaceholderRenderer fills {{name}}, {{first_name}}, {{handle}} and {{attr.<key>}}.
type PlaceholderRenderer struct{}

func (PlaceholderRenderer) Render(template string, platform string, t *models.Target) (string, error) {
	if template == "" {
		return "", nil
	}
	firstName := t.Name
	if i := strings.IndexByte(firstName, ' '); i > 0 {
		firstName = firstName[:i]
	}
	handle, _ := t.Handle(platform)

	pairs := []string{
		"{{name}}", t.Name,
		"{{first_name}}", firstName,
		"{{handle}}", handle,
	}
	for k, v := range t.Attributes {
		pairs = append(pairs, "{{attr."+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template), nil
}
