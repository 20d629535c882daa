package viewer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/width"
)

const (
	columnGap       = 2
	minCellWidth    = 12
	defaultTermCols = 100
)

// runeWidth returns the number of terminal cells r occupies
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// displayWidth returns the number of terminal cells s occupies
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

// fit truncates s to cells terminal cells and pads it with spaces to exactly cells
func fit(s string, cells int) string {
	if cells <= 0 {
		return ""
	}
	if displayWidth(s) > cells {
		var b strings.Builder
		used := 0
		for _, r := range s {
			w := runeWidth(r)
			if used+w > cells-1 {
				break
			}
			b.WriteRune(r)
			used += w
		}
		b.WriteString("…")
		s = b.String()
	}
	return s + strings.Repeat(" ", cells-displayWidth(s))
}

// cardLines returns the lines a card takes in the terminal grid
func cardLines(c Card) []string {
	lines := []string{c.Title}

	var meta []string
	if c.Broadcast != "" {
		meta = append(meta, c.Broadcast)
	}
	if c.TypeLabel != "" {
		meta = append(meta, c.TypeLabel)
	}
	if c.Score > 0 {
		meta = append(meta, fmt.Sprintf("★%d", c.Score))
	}
	if c.EpisodeCount > 0 {
		meta = append(meta, EpisodeLabel(c.EpisodeCount))
	}
	meta = append(meta, c.Genres...)
	lines = append(lines, strings.Join(meta, " "))

	titles := make([]string, 0, len(c.Links))
	for _, l := range c.Links {
		titles = append(titles, l.Title)
	}
	lines = append(lines, strings.Join(titles, " "))
	return lines
}

// WriteText renders the schedule page for a terminal termCols cells wide
func WriteText(w io.Writer, p Page, termCols int) error {
	if termCols <= 0 {
		termCols = defaultTermCols
	}

	var b strings.Builder

	season := p.Selections.Season
	for _, opt := range p.Header.Seasons {
		if opt.Selected {
			season = opt.Label
		}
	}
	site := p.Selections.Site
	for _, opt := range p.Header.Sites {
		if opt.Selected {
			site = opt.Label
		}
	}
	fmt.Fprintf(&b, "%s %s  [%s]", p.Selections.Year, season, site)
	if p.Header.Query != "" {
		fmt.Fprintf(&b, "  検索: %s", p.Header.Query)
	}
	b.WriteString("\n")

	for i, tab := range p.Tabs {
		if i > 0 {
			b.WriteString(" ")
		}
		if tab.Active {
			fmt.Fprintf(&b, "[%s %d]", tab.Label, tab.Count)
		} else {
			fmt.Fprintf(&b, " %s %d ", tab.Label, tab.Count)
		}
	}
	b.WriteString("\n\n")

	if p.Error != "" {
		fmt.Fprintf(&b, "! %s\n\n", p.Error)
	}
	if p.Loading {
		b.WriteString("Loading...\n\n")
	}

	if p.Empty {
		fmt.Fprintf(&b, "%s\n", p.EmptyText)
	} else {
		writeGrid(&b, p.Columns, termCols)
	}

	b.WriteString("\n")
	b.WriteString(p.Footer.Copyright)
	b.WriteString("\n")
	if p.Footer.TMDBNotice != "" {
		b.WriteString(p.Footer.TMDBNotice)
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeGrid(b *strings.Builder, columns [][]Card, termCols int) {
	if len(columns) == 0 {
		return
	}
	cell := (termCols - columnGap*(len(columns)-1)) / len(columns)
	if cell < minCellWidth {
		cell = minCellWidth
	}
	gap := strings.Repeat(" ", columnGap)

	rows := 0
	for _, col := range columns {
		if len(col) > rows {
			rows = len(col)
		}
	}

	for r := 0; r < rows; r++ {
		blocks := make([][]string, len(columns))
		height := 0
		for c, col := range columns {
			if r < len(col) {
				blocks[c] = cardLines(col[r])
			}
			if len(blocks[c]) > height {
				height = len(blocks[c])
			}
		}
		for line := 0; line < height; line++ {
			parts := make([]string, len(columns))
			for c := range columns {
				text := ""
				if line < len(blocks[c]) {
					text = blocks[c][line]
				}
				parts[c] = fit(text, cell)
			}
			b.WriteString(strings.TrimRight(strings.Join(parts, gap), " "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

// WriteDetailsText renders the details view for a terminal
func WriteDetailsText(w io.Writer, d Details) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\n", d.Title)
	fmt.Fprintf(tw, "%s\n", strings.Repeat("=", displayWidth(d.Title)))

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s\t%s\n", label, value)
		}
	}
	row("種別", d.TypeLabel)
	row("放送", d.Broadcast)
	if d.Score > 0 {
		row("評価", fmt.Sprintf("%d%%", d.Score))
	}
	if d.EpisodeCount > 0 {
		row("話数", EpisodeLabel(d.EpisodeCount))
	}
	row("シーズン", d.SeasonLabel)
	row("尺", d.RuntimeLabel)
	row("レーティング", d.ContentRating)
	row("ジャンル", strings.Join(d.Genres, ", "))
	for _, t := range d.Titles {
		row(t.Label, t.Value)
	}
	row(d.OfficialLabel, d.OfficialSite)
	for _, g := range d.Groups {
		for i, l := range g.Links {
			label := ""
			if i == 0 {
				label = g.Label
			}
			fmt.Fprintf(tw, "%s\t%s  %s\n", label, l.Title, l.URL)
		}
	}
	row("スタジオ", strings.Join(d.Studios, ", "))
	for i, c := range d.Cast {
		label := ""
		if i == 0 {
			label = "キャスト"
		}
		if c.VoiceActor != "" {
			fmt.Fprintf(tw, "%s\t%s (CV %s)\n", label, c.Name, c.VoiceActor)
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", label, c.Name)
		}
	}
	for _, g := range d.Staff {
		for _, m := range g.Members {
			fmt.Fprintf(tw, "%s\t%s: %s\n", g.Department, m.Role, m.Name)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if d.Description != "" {
		if _, err := fmt.Fprintf(w, "\nあらすじ\n%s\n", d.Description); err != nil {
			return err
		}
	}
	if len(d.Episodes) > 0 {
		if _, err := io.WriteString(w, "\nエピソード\n"); err != nil {
			return err
		}
		for _, ep := range d.Episodes {
			line := fmt.Sprintf("%3d  %s", ep.Number, ep.Title)
			if ep.Runtime != "" {
				line += "  " + ep.Runtime
			}
			if ep.AirDate != "" {
				line += "  " + ep.AirDate
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
