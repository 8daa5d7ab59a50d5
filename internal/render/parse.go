// Package render turns generated recipe text into an ordered list of display blocks.
//
// The input is the loose, line-oriented markup recipe generators tend to emit:
// "Title:" lines, "#" headings, "**bold**" spans, "-" or "*" bullets and
// "Step N" lines. Parsing never fails. A line that matches nothing becomes a
// paragraph and an empty line is dropped.
package render

import (
	"regexp"
	"strings"
)

var (
	lineSplit = regexp.MustCompile(`\n+`)

	headingMarker = regexp.MustCompile(`^#+\s*`)
	boldSpan      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicSpan    = regexp.MustCompile(`\*(.*?)\*`)

	titlePrefix        = regexp.MustCompile(`(?i)^Title:\s*`)
	ingredientsPrefix  = regexp.MustCompile(`(?i)^Ingredients:`)
	instructionsPrefix = regexp.MustCompile(`(?i)^Instructions:`)
	bulletPrefix       = regexp.MustCompile(`^[-*] `)
	bulletMarker       = regexp.MustCompile(`^[-*]\s*`)
	stepPrefix         = regexp.MustCompile(`(?i)^Step\s*\d+`)

	// Raw mode: the same keywords, allowed to sit behind heading and bold markers.
	rawTitlePrefix        = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*)?Title:(?:\*\*)?\s*`)
	rawIngredientsHeading = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*)?Ingredients(?::(?:\*\*)?|(?:\*\*)?:?\s*$)`)
	rawInstructionHeading = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*)?Instructions(?::(?:\*\*)?|(?:\*\*)?:?\s*$)`)
	rawStepPrefix         = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*)?Step\s*\d+`)
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithRawMarkup classifies lines without stripping markdown first. Block texts
// keep their bold and heading markers.
func WithRawMarkup() Option {
	return func(r *Renderer) {
		r.raw = true
	}
}

// Renderer classifies recipe text lines. The zero value renders normalized text.
type Renderer struct {
	raw bool
}

// New returns a Renderer with the given options applied.
func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = New()

// Parse renders text with the default, normalizing renderer.
func Parse(text string) Blocks {
	return defaultRenderer.Parse(text)
}

// Parse splits text into lines and classifies each one. Precedence, first match wins:
// title, ingredients heading, bullet, instructions heading, step, paragraph.
// A bulleted step ("- Step 1: ...") is therefore a list item.
func (r *Renderer) Parse(text string) Blocks {
	lines := lineSplit.Split(text, -1)
	blocks := make(Blocks, 0, len(lines))
	for i, line := range lines {
		var (
			b  Block
			ok bool
		)
		if r.raw {
			b, ok = classifyRaw(strings.TrimSpace(line))
		} else {
			b, ok = classify(Normalize(line))
		}
		if !ok {
			continue
		}
		b.Line = i
		blocks = append(blocks, b)
	}
	return blocks
}

// Normalize strips one leading heading marker and all bold and italic markers,
// then trims the line.
func Normalize(line string) string {
	line = headingMarker.ReplaceAllString(line, "")
	line = boldSpan.ReplaceAllString(line, "$1")
	line = italicSpan.ReplaceAllString(line, "$1")
	return strings.TrimSpace(line)
}

func classify(line string) (Block, bool) {
	switch {
	case titlePrefix.MatchString(line):
		return Block{Kind: KindTitle, Text: titlePrefix.ReplaceAllString(line, "")}, true
	case ingredientsPrefix.MatchString(line) || strings.EqualFold(line, SectionIngredients):
		return Block{Kind: KindSection, Text: SectionIngredients}, true
	case bulletPrefix.MatchString(line):
		return Block{Kind: KindListItem, Text: bulletMarker.ReplaceAllString(line, "")}, true
	case instructionsPrefix.MatchString(line) || strings.EqualFold(line, SectionInstructions):
		return Block{Kind: KindSection, Text: SectionInstructions}, true
	case stepPrefix.MatchString(line):
		return Block{Kind: KindStep, Text: line}, true
	case line != "":
		return Block{Kind: KindParagraph, Text: line}, true
	}
	return Block{}, false
}

func classifyRaw(line string) (Block, bool) {
	switch {
	case rawTitlePrefix.MatchString(line):
		title := rawTitlePrefix.ReplaceAllString(line, "")
		return Block{Kind: KindTitle, Text: strings.TrimSpace(strings.TrimSuffix(title, "**"))}, true
	case rawIngredientsHeading.MatchString(line):
		return Block{Kind: KindSection, Text: SectionIngredients}, true
	case bulletPrefix.MatchString(line):
		return Block{Kind: KindListItem, Text: bulletMarker.ReplaceAllString(line, "")}, true
	case rawInstructionHeading.MatchString(line):
		return Block{Kind: KindSection, Text: SectionInstructions}, true
	case rawStepPrefix.MatchString(line):
		return Block{Kind: KindStep, Text: line}, true
	case line != "":
		return Block{Kind: KindParagraph, Text: line}, true
	}
	return Block{}, false
}
