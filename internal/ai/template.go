package ai

import (
	"embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/rdex/internal/shared"
)

//go:embed prompts/default.toml
var defaultPrompts embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{?([A-Za-z_][A-Za-z0-9_]*)\}?\}`)

// Template is a named prompt with declared placeholder keys.
type Template struct {
	Name        string   `toml:"-"`
	Description string   `toml:"description"`
	Keys        []string `toml:"keys"`
	Text        string   `toml:"text"`
}

// NewTemplate returns a template. With no keys, every {identifier} in text is taken as declared.
func NewTemplate(name, text string, keys ...string) *Template {
	if len(keys) == 0 {
		keys = DiscoverKeys(text)
	}
	return &Template{Name: name, Text: text, Keys: keys}
}

// DiscoverKeys lists the distinct {key} and {{key}} identifiers in text, in order of appearance.
func DiscoverKeys(text string) []string {
	var keys []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(keys, m[1]) {
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Render substitutes every declared placeholder in a single pass, so values that themselves look
// like placeholders are not expanded again. A declared key absent from values is an error; a
// blank value renders as "[key未設定]".
func (t *Template) Render(values map[string]string) (string, error) {
	var missing []string
	pairs := make([]string, 0, len(t.Keys)*4)
	for _, key := range t.Keys {
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if strings.TrimSpace(v) == "" {
			v = "[" + key + "未設定]"
		}
		pairs = append(pairs, "{{"+key+"}}", v, "{"+key+"}", v)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: template %q needs %s", shared.ErrTemplateKey, t.Name, strings.Join(missing, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(t.Text), nil
}

// Unresolved lists declared keys whose placeholder still appears in text.
func (t *Template) Unresolved(text string) []string {
	var left []string
	for _, key := range t.Keys {
		if strings.Contains(text, "{"+key+"}") {
			left = append(left, key)
		}
	}
	return left
}

type templateFile struct {
	Templates map[string]*Template `toml:"templates"`
}

// LoadTemplates returns the built-in templates overlaid with those in path. A missing or empty path
// yields the built-ins only.
func LoadTemplates(path string) (map[string]*Template, error) {
	data, err := defaultPrompts.ReadFile("prompts/default.toml")
	if err != nil {
		return nil, err
	}
	templates, err := parseTemplates(data)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return templates, nil
	}

	data, err = os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return templates, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read prompt templates: %w", err)
	}
	user, err := parseTemplates(data)
	if err != nil {
		return nil, err
	}
	maps.Copy(templates, user)
	return templates, nil
}

func parseTemplates(data []byte) (map[string]*Template, error) {
	var f templateFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", shared.ErrInvalidConfig, err)
	}
	out := make(map[string]*Template, len(f.Templates))
	for name, t := range f.Templates {
		t.Name = name
		t.Text = strings.TrimSpace(t.Text)
		if len(t.Keys) == 0 {
			t.Keys = DiscoverKeys(t.Text)
		}
		out[name] = t
	}
	return out, nil
}
