package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MessageTemplate is one outreach template. Subject and Body may use
// {business_name}, {business_type}, {location}, {overview}, and
// {from_email} placeholders.
type MessageTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Render substitutes placeholders from the given values.
func (t MessageTemplate) Render(values map[string]string) (subject, body string) {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body)
}

// TemplateSet holds the named outreach templates.
type TemplateSet struct {
	Templates map[string]MessageTemplate `yaml:"templates"`
}

// Get returns the named template, falling back to "professional".
func (s *TemplateSet) Get(name string) MessageTemplate {
	if t, ok := s.Templates[name]; ok {
		return t
	}
	return s.Templates["professional"]
}

const defaultTemplatesYAML = `
templates:
  professional:
    subject: "Quick question about {business_name}"
    body: |
      Hi,

      I came across {business_name} while looking at {business_type} businesses in {location}. {overview}

      We help businesses like yours reach more local customers. Would you be open to a short call this week?

      Best regards
  casual:
    subject: "Loved what {business_name} is doing"
    body: |
      Hey there,

      {business_name} caught my eye while I was researching {business_type} spots around {location}. {overview}

      I'd love to share a couple of ideas that have worked well for similar businesses. Got ten minutes this week?

      Cheers
  direct:
    subject: "{business_name} - one idea worth two minutes"
    body: |
      Hi,

      One idea for {business_name}: most {business_type} businesses in {location} miss out on repeat customers simply because nobody follows up. We fix that.

      Worth a quick chat?
`

// LoadTemplates reads templates from path, or the built-in defaults
// when path is empty. A file only overrides the templates it names.
func LoadTemplates(path string) (*TemplateSet, error) {
	var set TemplateSet
	if err := yaml.Unmarshal([]byte(defaultTemplatesYAML), &set); err != nil {
		return nil, eris.Wrap(err, "templates: parse defaults")
	}

	if path == "" {
		return &set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "templates: read %s", path)
	}
	var overrides TemplateSet
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "templates: parse %s", path)
	}
	for name, t := range overrides.Templates {
		set.Templates[name] = t
	}
	return &set, nil
}
