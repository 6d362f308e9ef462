package mapping

// Palette is cycled by pair insertion index.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F06292", "#AED581", "#7986CB", "#4DB6AC", "#FFD54F",
}

type Assignment struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Color  string `json:"color"`
}

// ColorPairs assigns colors to a mapping's pairs by insertion order.
func ColorPairs(m *ColumnMapping) []Assignment {
	pairs := m.Pairs()
	out := make([]Assignment, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, Assignment{Source: p.Source, Target: p.Target, Color: Palette[i%len(Palette)]})
	}
	return out
}

// Colors returns the active sheet's colored pairs. Recompute after every change.
func (s *Session) Colors() []Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ColorPairs(s.mappings[s.activeSheet])
}

// ColorOf returns the color a label shows on the given side of the active sheet, or "".
// A canonical field mapped more than once takes the color of its first pair.
func (s *Session) ColorOf(label string, side Side) string {
	for _, a := range s.Colors() {
		if (side == SideSource && a.Source == label) || (side == SideTarget && a.Target == label) {
			return a.Color
		}
	}
	return ""
}
