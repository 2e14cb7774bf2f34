package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cornersweep/internal/corner"
)

const invDeck = `* {{ device }} functional test
.lib "sm141064.ngspice" {{ process }}
.temp {{temp}}
VDD vdd 0 {{.volt}}
.control
wrdata {{ result }} v(out)
.endc
`

func item() corner.WorkItem {
	return corner.WorkItem{
		Device: "inv",
		Corner: corner.Spec{Process: "ff", Voltage: "4.5", Temperature: "-40"},
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	text, err := Render(invDeck, item(), map[string]string{"result": "out.csv"})
	require.NoError(t, err)

	assert.Contains(t, text, "* inv functional test")
	assert.Contains(t, text, `"sm141064.ngspice" ff`)
	assert.Contains(t, text, ".temp -40")
	assert.Contains(t, text, "VDD vdd 0 4.5")
	assert.Contains(t, text, "wrdata out.csv v(out)")
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	_, err := Render("R1 a b {{ resistance }}", item(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)
}

func TestRenderKeepsTemplateKeywords(t *testing.T) {
	text, err := Render("{{if .device}}X{{ end }}", item(), nil)
	require.NoError(t, err)
	assert.Equal(t, "X", text)
}

func TestWriteIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer("inv.spice", invDeck, dir)
	require.NoError(t, err)

	extra := map[string]string{"result": "out.csv"}
	p1, err := r.Write(item(), extra)
	require.NoError(t, err)
	first, err := os.ReadFile(p1)
	require.NoError(t, err)

	p2, err := r.Write(item(), extra)
	require.NoError(t, err)
	second, err := os.ReadFile(p2)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join(dir, "inv_ff_-40c_4.5v.spice"), p1)
}

func TestNameOmitsEmptyFields(t *testing.T) {
	it := corner.WorkItem{Device: "npn_10p00x10p00", Corner: corner.Spec{Process: "typical", Temperature: "25"}}
	assert.Equal(t, "npn_10p00x10p00_typical_25c", Name(it))
}

func TestLoadMissingTemplate(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.spice"), t.TempDir())
	assert.Error(t, err)
}
