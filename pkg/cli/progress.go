package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"krama/pkg/history"
	"krama/pkg/krama"
)

var (
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00c8f0"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00d787"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	hitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f6be00"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// Progress echoes run and stage transitions to the terminal. It implements
// krama.Observer; wire it in with krama.WithObserver. Plain mode strips
// styling for non-TTY and scripted use.
type Progress struct {
	krama.NoopObserver

	w     io.Writer
	plain bool
}

// NewProgress creates a progress printer writing to w.
func NewProgress(w io.Writer, plain bool) *Progress {
	return &Progress{w: w, plain: plain}
}

func (p *Progress) style(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *Progress) OnStageStart(ctx context.Context, event *krama.StageStartEvent) {
	fmt.Fprintf(p.w, "%s %s\n", p.style(stageStyle, "▸"), event.Stage)
}

func (p *Progress) OnStageEnd(ctx context.Context, event *krama.StageEndEvent) {
	dur := p.style(dimStyle, fmt.Sprintf("(%s)", event.Duration.Round(time.Millisecond)))
	if event.Error != nil {
		fmt.Fprintf(p.w, "%s %s %s\n", p.style(failStyle, "✗"), event.Stage, dur)
		return
	}
	fmt.Fprintf(p.w, "%s %s %s\n", p.style(okStyle, "✓"), event.Stage, dur)
}

func (p *Progress) OnCacheCheck(ctx context.Context, event *krama.CacheCheckEvent) {
	if !event.Hit {
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", p.style(hitStyle, "↩"), event.Callable)
}

// RenderHistory writes the run records as a table, oldest first. Plain
// mode drops the header color but keeps the layout.
func RenderHistory(w io.Writer, runs []history.Run, plain bool) {
	if len(runs) == 0 {
		return
	}

	headerStyle := lipgloss.NewStyle().Align(lipgloss.Left)
	cellStyle := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
	if !plain {
		headerStyle = headerStyle.Foreground(lipgloss.Color("#f6be00"))
	}

	var rows [][]string
	for _, run := range runs {
		status := string(run.Outcome)
		if run.Outcome == history.OutcomeFailed {
			status = fmt.Sprintf("%s@%d", status, run.FailedStage)
		}
		rows = append(rows, []string{
			run.ID,
			humanize.Time(run.StartedAt),
			status,
			run.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d", len(run.Stages)),
		})
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("RUN", "STARTED", "STATUS", "DURATION", "STAGES").
		BorderHeader(false).
		Rows(rows...)

	fmt.Fprintln(w, t)
}
