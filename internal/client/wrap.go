package client

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// wrapLines breaks every line into rows no wider than width terminal cells.
func wrapLines(lines []string, width int) []string {
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, wrapLine(line, width)...)
	}
	return rows
}

// wrapLine prefers breaking at spaces and splits words that cannot fit a row
// on their own.
func wrapLine(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}

	var (
		rows     []string
		row      strings.Builder
		rowWidth int
	)
	flush := func() {
		rows = append(rows, strings.TrimRight(row.String(), " "))
		row.Reset()
		rowWidth = 0
	}

	for _, word := range strings.SplitAfter(line, " ") {
		wordWidth := runewidth.StringWidth(strings.TrimRight(word, " "))
		if rowWidth > 0 && rowWidth+wordWidth > width {
			flush()
		}
		if rowWidth == 0 {
			word = strings.TrimLeft(word, " ")
			for wordWidth > width {
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					_, size := utf8.DecodeRuneInString(word)
					head = word[:size]
				}
				rows = append(rows, head)
				word = word[len(head):]
				wordWidth = runewidth.StringWidth(strings.TrimRight(word, " "))
			}
		}
		row.WriteString(word)
		rowWidth += runewidth.StringWidth(word)
	}
	if strings.TrimSpace(row.String()) != "" {
		flush()
	}
	return rows
}
