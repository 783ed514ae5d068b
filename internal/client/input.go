package client

import "strings"

// handleTabCompletion extends a partially typed command name.
func (a *App) handleTabCompletion() {
	value := a.input.Value()
	if a.input.Position() != len([]rune(value)) {
		return
	}
	if completed, ok := completeCommand(value, string(a.cfg.CommandPrefix), a.commands); ok {
		a.input.SetValue(completed)
		a.input.CursorEnd()
	}
}

// completeCommand returns value extended to the longest prefix shared by
// every command it could name. Arguments are never completed.
func completeCommand(value, prefix string, commands []commandSpec) (string, bool) {
	if !strings.HasPrefix(value, prefix) || strings.ContainsAny(value, " \t") {
		return value, false
	}
	lower := strings.ToLower(value)

	var candidates []string
	for _, c := range commands {
		if strings.HasPrefix(c.trigger, lower) {
			candidates = append(candidates, c.trigger)
		}
	}
	if len(candidates) == 0 {
		return value, false
	}
	if len(candidates) == 1 {
		return candidates[0] + " ", true
	}

	common := commonPrefix(candidates)
	if len(common) <= len(value) {
		return value, false
	}
	return common, true
}

func commonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	common := []rune(values[0])
	for _, v := range values[1:] {
		r := []rune(v)
		n := 0
		for n < len(common) && n < len(r) && common[n] == r[n] {
			n++
		}
		common = common[:n]
	}
	return string(common)
}
