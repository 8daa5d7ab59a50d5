package web

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/recgen/recgen/internal/render"
	"github.com/recgen/recgen/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{
		"icon": render.IngredientIcon,
	}).ParseFS(templateFS, "templates/*.html"))

type suggestionView struct {
	Index    int
	Number   int
	Name     string
	Selected bool
}

// blockView is a display block with consecutive list items folded into one list.
type blockView struct {
	Kind  string
	Text  string
	Items []string
}

type pageView struct {
	Alert       string
	Title       string
	HasImage    bool
	ImageName   string
	Generation  uint64
	Busy        bool
	Error       string
	Ingredients []string
	Suggestions []suggestionView
	Blocks      []blockView
}

func newPageView(state *session.State, blocks render.Blocks, alert string) pageView {
	v := pageView{
		Alert:       alert,
		Title:       blocks.Title(),
		HasImage:    state.HasImage(),
		Generation:  state.Generation,
		Busy:        state.BusyAt(time.Now()),
		Error:       state.Error,
		Ingredients: state.Ingredients,
		Blocks:      groupBlocks(blocks),
	}
	if state.Image != nil {
		v.ImageName = state.Image.Name
	}
	for i, name := range state.Suggestions {
		v.Suggestions = append(v.Suggestions, suggestionView{
			Index:    i,
			Number:   i + 1,
			Name:     name,
			Selected: i == state.Selected,
		})
	}
	return v
}

func groupBlocks(blocks render.Blocks) []blockView {
	var out []blockView
	for _, b := range blocks {
		if b.Kind == render.KindListItem {
			if n := len(out); n > 0 && out[n-1].Kind == "list" {
				out[n-1].Items = append(out[n-1].Items, b.Text)
				continue
			}
			out = append(out, blockView{Kind: "list", Items: []string{b.Text}})
			continue
		}
		out = append(out, blockView{Kind: b.Kind.String(), Text: b.Text})
	}
	return out
}

func renderPage(w io.Writer, v pageView) error {
	return templates.ExecuteTemplate(w, "index", v)
}
