package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripKnowledgeBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no block", "You are a receptionist.", "You are a receptionist."},
		{"trailing block", "You are a receptionist.\n\n[Knowledge Base Access]\nUse the tool.", "You are a receptionist."},
		{"block only", "[Knowledge Base Access]\nUse the tool.", ""},
		{"middle block", "Intro.\n\n[Knowledge Base Access]\nUse the tool.\n\nOutro.", "Intro.\n\nOutro."},
		{"blank line with spaces", "Intro.\n\n[Knowledge Base Access]\nUse the tool.\n  \t\nOutro.", "Intro.\n\nOutro."},
		{"two blocks", "A\n\n[Knowledge Base Access]\nfirst\n\nB\n\n[Knowledge Base Access]\nsecond", "A\n\nB"},
		{"leading block", "[Knowledge Base Access]\nUse the tool.\n\nBe polite.", "Be polite."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripKnowledgeBlock(tt.in))
		})
	}
}

func TestAppendKnowledgeBlock(t *testing.T) {
	base := "You answer calls for a dental clinic."

	once := AppendKnowledgeBlock(base, "Query the clinic handbook for opening hours.")
	assert.Equal(t, base+"\n\n[Knowledge Base Access]\nQuery the clinic handbook for opening hours.", once)

	twice := AppendKnowledgeBlock(once, "Query the clinic handbook for opening hours.")
	assert.Equal(t, once, twice)

	replaced := AppendKnowledgeBlock(once, "Use the price list.")
	assert.Equal(t, base+"\n\n[Knowledge Base Access]\nUse the price list.", replaced)
	assert.Equal(t, 1, strings.Count(replaced, KnowledgeBaseHeader))

	assert.Equal(t, base, StripKnowledgeBlock(replaced))
}

func TestAppendKnowledgeBlock_EmptyPrompt(t *testing.T) {
	got := AppendKnowledgeBlock("", "")
	assert.Equal(t, KnowledgeBaseHeader+"\n"+DefaultKnowledgeInstruction, got)
}

func TestAppendKnowledgeBlock_MultiParagraphInstruction(t *testing.T) {
	got := AppendKnowledgeBlock("Hi.", "First line.\n\nSecond line.\n")

	instr, ok := KnowledgeBlock(got)
	assert.True(t, ok)
	assert.Equal(t, "First line. Second line.", instr)
	assert.Equal(t, "Hi.", StripKnowledgeBlock(got))
}

func TestKnowledgeBlock(t *testing.T) {
	_, ok := KnowledgeBlock("nothing here")
	assert.False(t, ok)

	instr, ok := KnowledgeBlock("Intro.\n\n[Knowledge Base Access]\nUse the tool.\n\nOutro.")
	assert.True(t, ok)
	assert.Equal(t, "Use the tool.", instr)
}

func TestNormalizeInstruction(t *testing.T) {
	assert.Equal(t, DefaultKnowledgeInstruction, NormalizeInstruction("  \n "))
	assert.Equal(t, "a b c", NormalizeInstruction("a\n\nb\t c"))
	assert.Equal(t, "Use it.", NormalizeInstruction("[Knowledge Base Access] Use it."))
}

func TestRenderExternal(t *testing.T) {
	assert.Equal(t, HiddenSuffix, RenderExternal(""))
	assert.Equal(t, HiddenSuffix, RenderExternal("\n\n"))

	out := RenderExternal("Be helpful.")
	assert.Equal(t, "Be helpful.\n\n"+HiddenSuffix, out)
	assert.Equal(t, out, RenderExternal(out))
	assert.Equal(t, "Be helpful.", StripHidden(out))
}

func TestStripHidden(t *testing.T) {
	assert.Equal(t, "untouched\n", StripHidden("untouched\n"))
	assert.Equal(t, "", StripHidden(HiddenSuffix))
	assert.Equal(t, "Hi.\n\n[Knowledge Base Access]\nx",
		StripHidden(RenderExternal("Hi.\n\n[Knowledge Base Access]\nx")))
}
