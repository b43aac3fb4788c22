package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rawp123/covertower/pkg/tower"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// runSeriesBrowser opens the interactive post-render browser.
func runSeriesBrowser(chart tower.ChartData) error {
	_, err := tea.NewProgram(NewSeriesBrowserModel(chart)).Run()
	return err
}

// SeriesBrowserModel is the bubbletea model for browsing rendered series:
// one row per display bucket, with a drill-down into its drawable points
// and their participants.
type SeriesBrowserModel struct {
	Chart      tower.ChartData
	Cursor     int
	ShowDetail bool
	Height     int
	Offset     int
}

// NewSeriesBrowserModel creates a browser over the given chart data.
func NewSeriesBrowserModel(chart tower.ChartData) SeriesBrowserModel {
	return SeriesBrowserModel{Chart: chart, Height: 15}
}

func (m SeriesBrowserModel) Init() tea.Cmd {
	return nil
}

func (m SeriesBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.ShowDetail {
				m.ShowDetail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Chart.Series)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Chart.Series) > 0 {
				m.ShowDetail = !m.ShowDetail
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SeriesBrowserModel) View() string {
	if m.ShowDetail {
		return m.detailView()
	}
	return m.listView()
}

func (m SeriesBrowserModel) listView() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Coverage Series"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ points  q quit"))
	b.WriteString("\n\n")

	if len(m.Chart.Series) == 0 {
		b.WriteString(listDimStyle.Render("  no series in the current view"))
		return b.String()
	}

	end := m.Offset + m.Height
	if end > len(m.Chart.Series) {
		end = len(m.Chart.Series)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Chart.Series[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		swatch := "—"
		if hex, ok := m.Chart.Colors[s.Name]; ok {
			swatch = lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("██")
		}

		rows = append(rows, []string{
			cursor, s.Name, swatch,
			fmt.Sprintf("%d", len(s.Points)),
			formatAmount(seriesTopLimit(s)),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Series", "Color", "Points", "Top").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Chart.Series))))

	return b.String()
}

func (m SeriesBrowserModel) detailView() string {
	s := m.Chart.Series[m.Cursor]

	var b strings.Builder
	b.WriteString(StyleTitle.Render(s.Name))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("esc back  q quit"))
	b.WriteString("\n\n")

	for _, p := range s.Points {
		layer := fmt.Sprintf("%s xs %s",
			formatAmount(p.Top-p.Attach), formatAmount(p.Attach))
		span := fmt.Sprintf("x %.2f–%.2f", p.XStart, p.XEnd)
		if p.IsQuotaShare {
			layer += "  " + StyleHighlight.Render("(quota share)")
		}
		b.WriteString("  " + StyleValue.Render(layer) + "  " + listDimStyle.Render(span) + "\n")

		for _, part := range p.Participants {
			line := fmt.Sprintf("    %s  %s", part.Carrier, formatAmount(part.Limit))
			if part.Availability == tower.Unavailable {
				line += "  " + StyleWarning.Render("unavailable")
			}
			b.WriteString(listDimStyle.Render(line) + "\n")
		}
	}

	return b.String()
}

// seriesTopLimit returns the highest layer top in the series, the number a
// reader scans for first ("how tall is this tower").
func seriesTopLimit(s tower.Series) float64 {
	var top float64
	for _, p := range s.Points {
		if p.Top > top {
			top = p.Top
		}
	}
	return top
}

// formatAmount renders a currency amount in compact B/M/K notation.
func formatAmount(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return trimZero(fmt.Sprintf("%.1f", v/1e9)) + "B"
	case abs >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", v/1e6)) + "M"
	case abs >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", v/1e3)) + "K"
	default:
		return trimZero(fmt.Sprintf("%.0f", v))
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
