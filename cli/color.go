package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/warp/capacity-engine/quota"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	metStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
	onTrackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CF5F"))
	behindStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	silentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// isTerminal reports whether out is a TTY. Pipes and buffers get plain text.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// styler renders with lipgloss on a terminal and passes text through otherwise.
type styler struct{ enabled bool }

func (s styler) header(text string) string { return s.render(headerStyle, text) }
func (s styler) silent(text string) string { return s.render(silentStyle, text) }

func (s styler) status(st quota.PaceStatus) string {
	switch st {
	case quota.PaceMet:
		return s.render(metStyle, string(st))
	case quota.PaceOnTrack:
		return s.render(onTrackStyle, string(st))
	default:
		return s.render(behindStyle, string(st))
	}
}

func (s styler) verdict(ok bool) string {
	if ok {
		return s.render(onTrackStyle, "yes")
	}
	return s.render(behindStyle, "no")
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}
