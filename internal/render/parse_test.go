package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Blocks
	}{
		{"title", "Title: Pasta", Blocks{{Kind: KindTitle, Text: "Pasta"}}},
		{"title lowercase", "title:   Pasta", Blocks{{Kind: KindTitle, Text: "Pasta"}}},
		{"bullet dash", "- Add salt", Blocks{{Kind: KindListItem, Text: "Add salt"}}},
		{"bullet star", "* Add salt", Blocks{{Kind: KindListItem, Text: "Add salt"}}},
		{"step", "Step 1: Boil water", Blocks{{Kind: KindStep, Text: "Step 1: Boil water"}}},
		{"bold step", "**Step 2:** Drain", Blocks{{Kind: KindStep, Text: "Step 2: Drain"}}},
		{"step no space", "step3 stir", Blocks{{Kind: KindStep, Text: "step3 stir"}}},
		{"paragraph", "Serves 4", Blocks{{Kind: KindParagraph, Text: "Serves 4"}}},
		{"ingredients prefix", "Ingredients: for 2", Blocks{{Kind: KindSection, Text: SectionIngredients}}},
		{"ingredients heading", "## Ingredients", Blocks{{Kind: KindSection, Text: SectionIngredients}}},
		{"instructions bold", "**Instructions:**", Blocks{{Kind: KindSection, Text: SectionInstructions}}},
		{"instructions heading", "#### instructions", Blocks{{Kind: KindSection, Text: SectionInstructions}}},
		{"heading becomes paragraph", "# Tips", Blocks{{Kind: KindParagraph, Text: "Tips"}}},
		{"italic removed", "Serve *warm*", Blocks{{Kind: KindParagraph, Text: "Serve warm"}}},
		{"blank", "", Blocks{}},
		{"whitespace only", "   \t ", Blocks{}},
		{"markers only", "****", Blocks{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParse_EndToEnd(t *testing.T) {
	in := "Title: Soup\nIngredients:\n- Carrot\n- Water\nInstructions:\nStep 1: Boil"

	got := Parse(in)

	want := Blocks{
		{Kind: KindTitle, Text: "Soup", Line: 0},
		{Kind: KindSection, Text: SectionIngredients, Line: 1},
		{Kind: KindListItem, Text: "Carrot", Line: 2},
		{Kind: KindListItem, Text: "Water", Line: 3},
		{Kind: KindSection, Text: SectionInstructions, Line: 4},
		{Kind: KindStep, Text: "Step 1: Boil", Line: 5},
	}
	assert.Equal(t, want, got)
}

func TestParse_MarkdownRecipe(t *testing.T) {
	in := "# **Title:** Tomato Soup\n\n\n### Ingredients\n* 2 tomatoes\n- **1** onion\n\r\n#### Instructions:\n**Step 1:** Chop.\n   \nEnjoy *hot*!\r\n"

	got := Parse(in)

	want := Blocks{
		{Kind: KindTitle, Text: "Tomato Soup", Line: 0},
		{Kind: KindSection, Text: SectionIngredients, Line: 1},
		{Kind: KindListItem, Text: "2 tomatoes", Line: 2},
		{Kind: KindListItem, Text: "1 onion", Line: 3},
		{Kind: KindSection, Text: SectionInstructions, Line: 5},
		{Kind: KindStep, Text: "Step 1: Chop.", Line: 6},
		{Kind: KindParagraph, Text: "Enjoy hot!", Line: 8},
	}
	assert.Equal(t, want, got)
}

func TestParse_BulletBeatsStep(t *testing.T) {
	got := Parse("- **Step 1** mix")
	require.Len(t, got, 1)
	assert.Equal(t, KindListItem, got[0].Kind)
	assert.Equal(t, "Step 1 mix", got[0].Text)
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Title: Soup\nIngredients:\n- Carrot\nStep 1: Boil",
		"# heading\n**bold** and *italic*\n\n\n- item\n* other\nrandom text",
		"Step 12 Bake\nStep 13\ninstructions\nINGREDIENTS",
	}
	for _, in := range inputs {
		assert.Equal(t, Parse(in), Parse(in))
	}
}

func TestParse_DuplicatesKept(t *testing.T) {
	got := Parse("- Salt\n- Salt")
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Text, got[1].Text)
	assert.Equal(t, 0, got[0].Line)
	assert.Equal(t, 1, got[1].Line)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Title: Pie", Normalize("## **Title:** Pie  "))
	assert.Equal(t, "a b c", Normalize("*a* **b** c"))
	assert.Equal(t, "- item", Normalize("  - item"))
}

func TestRenderer_RawMarkup(t *testing.T) {
	r := New(WithRawMarkup())

	in := "**Title:** Pie\n## Ingredients\n- **2** apples\n**Instructions:**\n**Step 1:** Peel\n### Notes\nServe *cold*"

	got := r.Parse(in)

	want := Blocks{
		{Kind: KindTitle, Text: "Pie", Line: 0},
		{Kind: KindSection, Text: SectionIngredients, Line: 1},
		{Kind: KindListItem, Text: "**2** apples", Line: 2},
		{Kind: KindSection, Text: SectionInstructions, Line: 3},
		{Kind: KindStep, Text: "**Step 1:** Peel", Line: 4},
		{Kind: KindParagraph, Text: "### Notes", Line: 5},
		{Kind: KindParagraph, Text: "Serve *cold*", Line: 6},
	}
	assert.Equal(t, want, got)
}

func TestRenderer_RawMarkupKeywordNotHeading(t *testing.T) {
	got := New(WithRawMarkup()).Parse("Ingredients list below")
	require.Len(t, got, 1)
	assert.Equal(t, KindParagraph, got[0].Kind)
}

func TestBlocks_JSON(t *testing.T) {
	data, err := json.Marshal(Parse("Title: Soup\n- Carrot"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"kind":"title","text":"Soup","line":0},{"kind":"item","text":"Carrot","line":1}]`, string(data))

	empty, err := json.Marshal(Blocks(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestBlocks_Text(t *testing.T) {
	out := Parse("Title: Soup\nIngredients:\n- Carrot\nStep 1: Boil").Text()
	assert.Equal(t, "Soup\n====\n\nIngredients\n-----------\n  • Carrot\nStep 1: Boil\n", out)
	assert.Equal(t, "Soup", Parse("intro\nTitle: Soup").Title())
}

func TestIngredientIcon(t *testing.T) {
	assert.Equal(t, "🥕", IngredientIcon("Carrot"))
	assert.Equal(t, "🍎", IngredientIcon(" apple "))
	assert.Equal(t, "🥗", IngredientIcon("broccoli"))
}
