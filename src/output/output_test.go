package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSectionFrame(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Push", 1500*time.Millisecond, false)
	RowKV(sec, "registry", "acr1.azurecr.io")
	RowKV(sec, "skipped", "")
	sec.Separator()
	SummaryRow(&buf, "push", "success", "acr1.azurecr.io/app:1.0", false)
	sec.Close()

	out := buf.String()
	assert.Contains(t, out, "── Push ")
	assert.Contains(t, out, "1.5s ──")
	assert.Contains(t, out, "│ registry      acr1.azurecr.io")
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "│ push        ✓  acr1.azurecr.io/app:1.0")
	assert.True(t, strings.HasSuffix(out, "────\n"))
}

func TestStatusIconPlain(t *testing.T) {
	assert.Equal(t, "✓", StatusIcon("success", false))
	assert.Equal(t, "✗", StatusIcon("failed", false))
	assert.Equal(t, "!", StatusIcon("warning", false))
	assert.Equal(t, "⊘", StatusIcon("skipped", false))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "<1ms", formatElapsed(0))
	assert.Equal(t, "250ms", formatElapsed(250*time.Millisecond))
	assert.Equal(t, "2m5.0s", formatElapsed(125*time.Second))
}

func TestBannerPlain(t *testing.T) {
	var buf bytes.Buffer
	Banner(&buf, BannerInfo{Version: "1.0.0", SHA: "abc1234", Branch: "main"}, false)
	assert.Contains(t, buf.String(), "edgefreight  │  1.0.0  │  abc1234 · main")
}

func TestUseColorRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor())
}

func TestSectionMarkersOutsideCI(t *testing.T) {
	t.Setenv("GITLAB_CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	var buf bytes.Buffer
	SectionStart(&buf, "push", "Push")
	SectionEnd(&buf, "push")
	assert.Empty(t, buf.String())

	t.Setenv("GITHUB_ACTIONS", "true")
	SectionStart(&buf, "push", "Push")
	SectionEnd(&buf, "push")
	assert.Equal(t, "::group::Push\n::endgroup::\n", buf.String())
}
