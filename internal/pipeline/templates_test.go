package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultTemplates(t *testing.T) {
	set, err := LoadTemplates("")
	require.NoError(t, err)

	for _, name := range []string{"professional", "casual", "direct"} {
		tmpl, ok := set.Templates[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, tmpl.Subject)
		assert.NotEmpty(t, tmpl.Body)
	}
}

func TestTemplateRender(t *testing.T) {
	set, err := LoadTemplates("")
	require.NoError(t, err)

	subject, body := set.Get("professional").Render(map[string]string{
		"business_name": "Canlis",
		"business_type": "restaurants",
		"location":      "Seattle, WA",
		"overview":      "A fine dining landmark.",
	})
	assert.Equal(t, "Quick question about Canlis", subject)
	assert.Contains(t, body, "Canlis")
	assert.Contains(t, body, "Seattle, WA")
	assert.Contains(t, body, "A fine dining landmark.")
	assert.NotContains(t, body, "{business_name}")
}

func TestTemplateGetFallsBack(t *testing.T) {
	set, err := LoadTemplates("")
	require.NoError(t, err)

	tmpl := set.Get("no-such-template")
	assert.Equal(t, set.Templates["professional"], tmpl)
}

func TestLoadTemplatesFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  professional:
    subject: "Custom subject for {business_name}"
    body: "Custom body"
`), 0o644))

	set, err := LoadTemplates(path)
	require.NoError(t, err)

	// the named template is replaced, the rest keep their defaults
	assert.Equal(t, "Custom subject for {business_name}", set.Templates["professional"].Subject)
	assert.NotEmpty(t, set.Templates["casual"].Subject)
}

func TestLoadTemplatesMissingFile(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
