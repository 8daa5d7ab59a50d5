package web

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/recgen/recgen/internal/errors"
	"github.com/recgen/recgen/internal/metrics"
	"github.com/recgen/recgen/internal/render"
	"github.com/recgen/recgen/internal/session"
	"github.com/recgen/recgen/internal/validation"
)

const (
	maxAlertLength = 200
	// multipartOverhead leaves room for form boundaries and headers on top of the image.
	multipartOverhead = 1 << 20
	maxRenderBody     = 1 << 20
)

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	state, err := s.component.State(r.Context(), sessionID(r))
	if err != nil {
		s.report(r, err, errors.NewInternalError("failed to load session", "SESSION_LOAD_FAILED", err))
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	alert := strings.TrimSpace(r.URL.Query().Get("alert"))
	alert = truncateRunes(alert, maxAlertLength)

	blocks := s.renderRecipe(r.Context(), state.Recipe)

	var buf bytes.Buffer
	if err := renderPage(&buf, newPageView(state, blocks, alert)); err != nil {
		s.report(r, err, errors.NewInternalError("failed to render page", "TEMPLATE_ERROR", err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) HandleImagePreview(w http.ResponseWriter, r *http.Request) {
	state, err := s.component.State(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if !state.HasImage() {
		http.Error(w, "No image selected", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", state.Image.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(state.Image.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(state.Image.Data)
}

func (s *Server) HandleSelectImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.readUpload(w, r)
	if err != nil {
		s.redirectAlert(w, r, err)
		return
	}
	if _, err := s.component.SelectImage(r.Context(), sessionID(r), img); err != nil {
		s.redirectAlert(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) HandleDetect(w http.ResponseWriter, r *http.Request) {
	if _, err := s.component.Detect(r.Context(), sessionID(r)); err != nil {
		s.redirectAlert(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) HandlePickRecipe(w http.ResponseWriter, r *http.Request) {
	index, err := recipeIndex(r)
	if err != nil {
		s.redirectAlert(w, r, err)
		return
	}
	if _, err := s.component.PickRecipe(r.Context(), sessionID(r), index); err != nil {
		s.redirectAlert(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type imageInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

type stateResponse struct {
	Flow        session.Flow  `json:"flow"`
	Image       *imageInfo    `json:"image"`
	Ingredients []string      `json:"ingredients"`
	Suggestions []string      `json:"suggestions"`
	Selected    int           `json:"selected"`
	Recipe      string        `json:"recipe"`
	Title       string        `json:"title,omitempty"`
	Blocks      render.Blocks `json:"blocks"`
	Error       string        `json:"error,omitempty"`
	Busy        bool          `json:"busy"`
}

func (s *Server) newStateResponse(ctx context.Context, state *session.State) *stateResponse {
	if state == nil {
		return nil
	}
	blocks := s.renderRecipe(ctx, state.Recipe)
	res := &stateResponse{
		Flow:        s.component.Flow(),
		Ingredients: state.Ingredients,
		Suggestions: state.Suggestions,
		Selected:    state.Selected,
		Recipe:      state.Recipe,
		Title:       blocks.Title(),
		Blocks:      blocks,
		Error:       state.Error,
		Busy:        state.BusyAt(time.Now()),
	}
	if state.Image != nil {
		res.Image = &imageInfo{
			Name:        state.Image.Name,
			ContentType: state.Image.ContentType,
			Size:        len(state.Image.Data),
			URL:         "/image?v=" + strconv.FormatUint(state.Generation, 10),
		}
	}
	return res
}

func (s *Server) HandleAPIState(w http.ResponseWriter, r *http.Request) {
	state, err := s.component.State(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.newStateResponse(r.Context(), state))
}

func (s *Server) HandleAPISelectImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	state, err := s.component.SelectImage(r.Context(), sessionID(r), img)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.newStateResponse(r.Context(), state))
}

func (s *Server) HandleAPIDetect(w http.ResponseWriter, r *http.Request) {
	state, err := s.component.Detect(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err, s.newStateResponse(r.Context(), state))
		return
	}
	writeJSON(w, http.StatusOK, s.newStateResponse(r.Context(), state))
}

func (s *Server) HandleAPIPickRecipe(w http.ResponseWriter, r *http.Request) {
	index, err := recipeIndex(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	state, err := s.component.PickRecipe(r.Context(), sessionID(r), index)
	if err != nil {
		s.writeError(w, r, err, s.newStateResponse(r.Context(), state))
		return
	}
	writeJSON(w, http.StatusOK, s.newStateResponse(r.Context(), state))
}

type renderResponse struct {
	Title  string        `json:"title,omitempty"`
	Blocks render.Blocks `json:"blocks"`
}

// HandleRender renders the request body as recipe text. ?raw=true keeps markup.
func (s *Server) HandleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRenderBody+1))
	if err != nil {
		s.writeError(w, r, errors.NewValidationError("Failed to read body", "INVALID_BODY", ""), nil)
		return
	}
	if len(body) > maxRenderBody {
		s.writeError(w, r, errors.NewValidationError("Recipe text too large", "BODY_TOO_LARGE", "Send at most 1 MiB of text."), nil)
		return
	}

	renderer := s.renderer
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		renderer = render.New(render.WithRawMarkup())
	}
	blocks := renderer.Parse(string(body))
	metrics.RenderedBlocks.Record(r.Context(), int64(len(blocks)))

	writeJSON(w, http.StatusOK, renderResponse{Title: blocks.Title(), Blocks: blocks})
}

func (s *Server) renderRecipe(ctx context.Context, text string) render.Blocks {
	if text == "" {
		return render.Blocks{}
	}
	blocks := s.renderer.Parse(text)
	metrics.RenderedBlocks.Record(ctx, int64(len(blocks)))
	return blocks
}

// readUpload reads and validates the multipart field "image".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (session.Image, error) {
	maxBytes := s.cfg.Component.MaxUploadBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return session.Image{}, errors.NewValidationError("Image too large.", "IMAGE_TOO_LARGE", "Pick a smaller photo.")
		}
		return session.Image{}, errors.NewValidationError(session.AlertNoImage, "NO_IMAGE_UPLOADED", "Pick a photo of your dish.")
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return session.Image{}, errors.NewValidationError("Failed to read image.", "IMAGE_READ_FAILED", "Try uploading the photo again.")
	}

	res, err := validation.ValidateImage(header.Filename, data, maxBytes)
	if err != nil {
		return session.Image{}, err
	}
	return session.Image{Name: res.Name, ContentType: res.ContentType, Data: data}, nil
}

func recipeIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, errors.NewValidationError("No such recipe suggestion.", "INVALID_RECIPE_INDEX", "Pick one of the listed suggestions.")
	}
	return index, nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
