package render

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies what a display block is.
type Kind int

const (
	KindParagraph Kind = iota
	KindTitle
	KindSection
	KindStep
	KindListItem
)

// Section labels. A section block never keeps the source line's wording.
const (
	SectionIngredients  = "Ingredients"
	SectionInstructions = "Instructions"
)

var kindNames = map[Kind]string{
	KindParagraph: "paragraph",
	KindTitle:     "title",
	KindSection:   "section",
	KindStep:      "step",
	KindListItem:  "item",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name so JSON clients don't depend on the enum order.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Block is one classified line of recipe text.
type Block struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	// Line is the index of the source line the block came from.
	Line int `json:"line"`
}

// Blocks is an ordered render of a recipe.
type Blocks []Block

// Title returns the text of the first title block, if any.
func (bs Blocks) Title() string {
	for _, b := range bs {
		if b.Kind == KindTitle {
			return b.Text
		}
	}
	return ""
}

// Text lays the blocks out for a terminal.
func (bs Blocks) Text() string {
	var sb strings.Builder
	for i, b := range bs {
		switch b.Kind {
		case KindTitle:
			sb.WriteString(b.Text)
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat("=", len([]rune(b.Text))))
			sb.WriteString("\n")
		case KindSection:
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Text)
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat("-", len([]rune(b.Text))))
			sb.WriteString("\n")
		case KindStep:
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		case KindListItem:
			sb.WriteString("  • ")
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		default:
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// MarshalJSON keeps an empty render as [] instead of null.
func (bs Blocks) MarshalJSON() ([]byte, error) {
	if bs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Block(bs))
}
