package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorsFollowInsertionOrder(t *testing.T) {
	s := openSession(t)
	_, _ = s.Pick("Member", SideSource)
	_, _ = s.Pick("MemberNo", SideTarget)
	_, _ = s.Pick("Claim #", SideSource)
	_, _ = s.Pick("ClaimNo", SideTarget)

	assert.Equal(t, []Assignment{
		{Source: "Member", Target: "MemberNo", Color: Palette[0]},
		{Source: "Claim #", Target: "ClaimNo", Color: Palette[1]},
	}, s.Colors())
	assert.Equal(t, Palette[1], s.ColorOf("Claim #", SideSource))
	assert.Equal(t, Palette[1], s.ColorOf("ClaimNo", SideTarget))
	assert.Equal(t, "", s.ColorOf("Paid", SideTarget))
}

func TestColorPairsWrapsPalette(t *testing.T) {
	m := &ColumnMapping{}
	for i := 0; i < len(Palette)+2; i++ {
		m.Set(string(rune('a'+i)), "Paid")
	}
	colors := ColorPairs(m)
	assert.Len(t, colors, len(Palette)+2)
	assert.Equal(t, Palette[0], colors[len(Palette)].Color)
	assert.Equal(t, Palette[1], colors[len(Palette)+1].Color)
	assert.Empty(t, ColorPairs(nil))
}
