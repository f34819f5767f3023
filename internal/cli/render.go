package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
)

const barWidth = 20

// namedColors はカテゴリに保存される色名を端末の色に対応付ける。
var namedColors = map[string]string{
	"red":    "#ef4444",
	"orange": "#f97316",
	"yellow": "#eab308",
	"green":  "#22c55e",
	"teal":   "#14b8a6",
	"blue":   "#3b82f6",
	"indigo": "#6366f1",
	"purple": "#a855f7",
	"pink":   "#ec4899",
	"gray":   "#6b7280",
}

func termColor(c string) (lipgloss.Color, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	if hex, ok := namedColors[c]; ok {
		return lipgloss.Color(hex), true
	}
	if strings.HasPrefix(c, "#") {
		return lipgloss.Color(c), true
	}
	return "", false
}

// label はカテゴリの表示名。Font Awesomeのクラス名は端末で表示できないため省く。
func label(c *model.Category) string {
	if c.Icon == "" || strings.HasPrefix(c.Icon, "fa") {
		return c.Name
	}
	return c.Icon + " " + c.Name
}

// printer はlipglossで装飾した一覧・進捗を出力する。
// 端末以外への出力では装飾は付かない。
type printer struct {
	w     io.Writer
	r     *lipgloss.Renderer
	faint lipgloss.Style
	done  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:     w,
		r:     r,
		faint: r.NewStyle().Faint(true),
		done:  r.NewStyle().Strikethrough(true).Faint(true),
	}
}

func (p *printer) categoryStyle(c *model.Category) lipgloss.Style {
	st := p.r.NewStyle().Bold(true)
	if col, ok := termColor(c.Color); ok {
		st = st.Foreground(col)
	}
	return st
}

func (p *printer) category(c *model.Category) {
	prog := dashboard.CategoryProgress(c)
	fmt.Fprintf(p.w, "%s  %s\n",
		p.categoryStyle(c).Render(label(c)),
		p.faint.Render(fmt.Sprintf("%d/%d (%d%%)  id:%s", prog.Completed, prog.Total, prog.Percent, c.ID)),
	)
}

func (p *printer) item(it *model.Item) {
	mark := "[ ]"
	titleText := it.Title
	if it.Completed {
		mark = "[x]"
		titleText = p.done.Render(it.Title)
	}
	fmt.Fprintf(p.w, "  %s %s %s\n", mark, titleText, p.faint.Render("("+string(it.Type)+")"))
	fmt.Fprintf(p.w, "      %s\n", p.faint.Render(it.URL+"  id:"+it.ID))
	if it.Notes != "" {
		fmt.Fprintf(p.w, "      %s\n", it.Notes)
	}
}

// bar は進捗率をbarWidth文字の棒グラフにする。
func (p *printer) bar(percent int, color string) string {
	filled := percent * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	st := p.r.NewStyle()
	if col, ok := termColor(color); ok {
		st = st.Foreground(col)
	}
	return st.Render(strings.Repeat("█", filled)) + p.faint.Render(strings.Repeat("░", barWidth-filled))
}

func (p *printer) progressLine(name string, prog dashboard.Progress, color string) {
	fmt.Fprintf(p.w, "%-24s %s %3d%%  %d/%d\n", name, p.bar(prog.Percent, color), prog.Percent, prog.Completed, prog.Total)
}
