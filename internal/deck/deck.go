// Package deck renders simulator input decks from a template and a work item.
package deck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"cornersweep/internal/corner"
)

// ErrUnknownPlaceholder is returned when a template references a name the
// work item does not provide.
var ErrUnknownPlaceholder = errors.New("unknown deck placeholder")

// Placeholder names every deck can use.
const (
	KeyDevice  = "device"
	KeyProcess = "process"
	KeyVolt    = "volt"
	KeyTemp    = "temp"
)

// barePlaceholder matches jinja-style "{{ name }}" so existing decks render unchanged.
var barePlaceholder = regexp.MustCompile(`\{\{-?\s*([A-Za-z_][A-Za-z0-9_]*)\s*-?\}\}`)

var templateKeywords = map[string]bool{
	"if": true, "else": true, "end": true, "range": true, "with": true,
	"define": true, "template": true, "block": true, "break": true,
	"continue": true, "nil": true,
}

// Renderer holds a parsed deck template and the directory decks are written to.
type Renderer struct {
	tmpl *template.Template
	dir  string
	ext  string
}

// Load reads a template file and prepares a renderer writing into dir.
func Load(path, dir string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck template: %w", err)
	}
	return NewRenderer(filepath.Base(path), string(data), dir)
}

// NewRenderer parses template text.
func NewRenderer(name, text, dir string) (*Renderer, error) {
	tmpl, err := compile(name, text)
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, dir: dir, ext: ".spice"}, nil
}

func compile(name, text string) (*template.Template, error) {
	converted := barePlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		sub := barePlaceholder.FindStringSubmatch(m)
		if templateKeywords[sub[1]] {
			return m
		}
		return "{{." + sub[1] + "}}"
	})
	tmpl, err := template.New(name).Option("missingkey=error").Parse(converted)
	if err != nil {
		return nil, fmt.Errorf("failed to parse deck template %s: %w", name, err)
	}
	return tmpl, nil
}

// Render substitutes the work item into template text. extra supplies
// harness-specific names such as the result path.
func Render(templateText string, item corner.WorkItem, extra map[string]string) (string, error) {
	r, err := NewRenderer("deck", templateText, "")
	if err != nil {
		return "", err
	}
	return r.Render(item, extra)
}

// Render executes the template for one work item.
func (r *Renderer) Render(item corner.WorkItem, extra map[string]string) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, Data(item, extra)); err != nil {
		var execErr template.ExecError
		if errors.As(err, &execErr) && strings.Contains(err.Error(), "no entry for key") {
			return "", fmt.Errorf("%w: %s: %v", ErrUnknownPlaceholder, item.Device, err)
		}
		return "", fmt.Errorf("failed to render deck for %s: %w", item.Device, err)
	}
	return sb.String(), nil
}

// Write renders the deck and writes it to Path(dir, item). Reruns overwrite.
func (r *Renderer) Write(item corner.WorkItem, extra map[string]string) (string, error) {
	text, err := r.Render(item, extra)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create deck directory: %w", err)
	}
	path := Path(r.dir, item, r.ext)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write deck: %w", err)
	}
	return path, nil
}

// Data is the placeholder map for a work item.
func Data(item corner.WorkItem, extra map[string]string) map[string]string {
	data := map[string]string{
		KeyDevice:  item.Device,
		KeyProcess: item.Corner.Process,
		KeyVolt:    item.Corner.Voltage,
		KeyTemp:    item.Corner.Temperature,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// Name is the deterministic base name for a work item:
// {device}_{process}_{temp}c_{volt}v with empty fields left out.
func Name(item corner.WorkItem) string {
	parts := []string{item.Device}
	if item.Corner.Process != "" {
		parts = append(parts, item.Corner.Process)
	}
	if item.Corner.Temperature != "" {
		parts = append(parts, item.Corner.Temperature+"c")
	}
	if item.Corner.Voltage != "" {
		parts = append(parts, item.Corner.Voltage+"v")
	}
	return strings.Join(parts, "_")
}

// Path joins dir with Name(item) and ext.
func Path(dir string, item corner.WorkItem, ext string) string {
	return filepath.Join(dir, Name(item)+ext)
}
