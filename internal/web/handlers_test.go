package web

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/recgen/recgen/internal/config"
	"github.com/recgen/recgen/internal/render"
	"github.com/recgen/recgen/internal/services/kitchen"
	"github.com/recgen/recgen/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

type stubService struct {
	detectErr   error
	generateErr error
}

func (s *stubService) Detect(ctx context.Context, img kitchen.Image) (*kitchen.DetectResult, error) {
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	return &kitchen.DetectResult{
		Detected:    []string{"carrot", "onion"},
		Suggestions: []string{"Carrot Soup", "Stir Fry"},
	}, nil
}

func (s *stubService) Generate(ctx context.Context, name string, ingredients []string) (*kitchen.RecipeResult, error) {
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &kitchen.RecipeResult{
		Recipe: "Title: " + name + "\nIngredients:\n- " + strings.Join(ingredients, "\n- ") + "\nInstructions:\nStep 1: Cook",
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:           "test",
		SessionSecret: "test-secret",
		Component: config.ComponentConfig{
			Flow:           config.FlowSuggest,
			MaxUploadBytes: 1 << 20,
			SessionTTL:     time.Hour,
			ActionsPerMin:  1000,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, svc session.Service) (*httptest.Server, *http.Client) {
	t.Helper()
	component := session.NewComponent(session.NewMemoryStore(time.Hour), svc, session.Flow(cfg.Component.Flow), nil)
	srv := httptest.NewServer(NewServer(cfg, component, nil).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func uploadBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

// renderedBlock is a block as JSON clients see it, with the kind by name.
type renderedBlock struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	Line int    `json:"line"`
}

type apiState struct {
	stateResponse
	Blocks []renderedBlock `json:"blocks"`
}

type apiRender struct {
	Title  string          `json:"title"`
	Blocks []renderedBlock `json:"blocks"`
}

func decodeState(t *testing.T, resp *http.Response) apiState {
	t.Helper()
	defer resp.Body.Close()
	var state apiState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestHealth(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	resp, err := client.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", readBody(t, resp))
}

func TestIndex_NewSession(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Cookies())
	assert.Contains(t, readBody(t, resp), `<button type="submit" disabled>Detect ingredients</button>`)
}

func TestIndex_AlertTruncatedOnRuneBoundary(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	alert := strings.Repeat("a", maxAlertLength-1) + "éé"
	resp, err := client.Get(srv.URL + "/?alert=" + url.QueryEscape(alert))
	require.NoError(t, err)

	page := readBody(t, resp)
	assert.Contains(t, page, strings.Repeat("a", maxAlertLength-1)+"é</div>")
	assert.True(t, utf8.ValidString(page))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "", truncateRunes("", 3))
	assert.Equal(t, "🥕", truncateRunes("🥕🥗", 1))
}

func TestDetect_WithoutImageShowsAlert(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	resp, err := client.Post(srv.URL+"/detect", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "Select an image first!")
}

func TestFormFlow(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	body, contentType := uploadBody(t, "dish.png", pngBytes)
	resp, err := client.Post(srv.URL+"/image", contentType, body)
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Contains(t, page, `src="/image?v=1"`)
	assert.Contains(t, page, `<button type="submit">Detect ingredients</button>`)

	resp, err = client.Post(srv.URL+"/detect", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "🥕 carrot")
	assert.Contains(t, page, "🥗 onion")
	assert.Contains(t, page, `action="/recipes/1"`)
	assert.Contains(t, page, `<button type="submit">1. Carrot Soup</button>`)
	assert.Contains(t, page, `<button type="submit">2. Stir Fry</button>`)

	resp, err = client.Post(srv.URL+"/recipes/0", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "<h2>Carrot Soup</h2>")
	assert.Contains(t, page, "<h3>Ingredients</h3>")
	assert.Contains(t, page, "<li>carrot</li><li>onion</li>")
	assert.Contains(t, page, "<strong>Step 1: Cook</strong>")

	resp, err = client.Get(srv.URL + "/image")
	require.NoError(t, err)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(pngBytes), readBody(t, resp))
}

func TestImagePreview_NoImage(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	resp, err := client.Get(srv.URL + "/image")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIFlow(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	body, contentType := uploadBody(t, "dish.png", pngBytes)
	resp, err := client.Post(srv.URL+"/api/image", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, resp)
	require.NotNil(t, state.Image)
	assert.Equal(t, "dish.png", state.Image.Name)
	assert.Equal(t, "image/png", state.Image.ContentType)
	assert.Equal(t, session.FlowSuggest, state.Flow)

	resp, err = client.Post(srv.URL+"/api/detect", "", nil)
	require.NoError(t, err)
	state = decodeState(t, resp)
	assert.Equal(t, []string{"carrot", "onion"}, state.Ingredients)
	assert.Equal(t, []string{"Carrot Soup", "Stir Fry"}, state.Suggestions)
	assert.Equal(t, session.NoSelection, state.Selected)

	resp, err = client.Post(srv.URL+"/api/recipes/1", "", nil)
	require.NoError(t, err)
	state = decodeState(t, resp)
	assert.Equal(t, 1, state.Selected)
	assert.Equal(t, "Stir Fry", state.Title)
	require.NotEmpty(t, state.Blocks)

	resp, err = client.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	again := decodeState(t, resp)
	assert.Equal(t, state.Recipe, again.Recipe)
}

func TestAPIDetect_Failure(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{detectErr: stderrors.New("timeout")})

	body, contentType := uploadBody(t, "dish.png", pngBytes)
	resp, err := client.Post(srv.URL+"/api/image", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Post(srv.URL+"/api/detect", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var out struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
		State apiState `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "DETECTION_ERROR", out.Error.Type)
	assert.Equal(t, session.AlertDetectionFailed, out.Error.Message)
	assert.Empty(t, out.State.Ingredients)
	assert.False(t, out.State.Busy)
}

func TestAPIPick_Errors(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{generateErr: stderrors.New("down")})

	resp, err := client.Post(srv.URL+"/api/recipes/abc", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType := uploadBody(t, "dish.png", pngBytes)
	resp, err = client.Post(srv.URL+"/api/image", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = client.Post(srv.URL+"/api/detect", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Post(srv.URL+"/api/recipes/0", "", nil)
	require.NoError(t, err)
	body2 := readBody(t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body2, session.AlertGenerationFailed)
}

func TestAPISelectImage_Invalid(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	body, contentType := uploadBody(t, "notes.png", []byte("just some text"))
	resp, err := client.Post(srv.URL+"/api/image", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = client.Post(srv.URL+"/api/image", "multipart/form-data; boundary=x", strings.NewReader(""))
	require.NoError(t, err)
	out := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out, session.AlertNoImage)
}

func TestAPIRender(t *testing.T) {
	srv, client := newTestServer(t, testConfig(), &stubService{})

	resp, err := client.Post(srv.URL+"/api/render", "text/plain", strings.NewReader("Title: Soup\n- Carrot\n\n**Step 1:** Boil"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiRender
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Soup", out.Title)
	require.Len(t, out.Blocks, 3)
	assert.Equal(t, "step", out.Blocks[2].Kind)
	assert.Equal(t, "Step 1: Boil", out.Blocks[2].Text)

	resp, err = client.Post(srv.URL+"/api/render?raw=true", "text/plain", strings.NewReader("**Step 1:** Boil"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "**Step 1:** Boil", out.Blocks[0].Text)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Component.ActionsPerMin = 1
	srv, client := newTestServer(t, cfg, &stubService{})

	resp, err := client.Post(srv.URL+"/api/detect", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = client.Post(srv.URL+"/api/detect", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGroupBlocks(t *testing.T) {
	views := groupBlocks(nil)
	assert.Empty(t, views)

	bs := render.Parse("Title: A\n- x\n- y\nmid\n- z")
	views = groupBlocks(bs)
	require.Len(t, views, 4)
	assert.Equal(t, "title", views[0].Kind)
	assert.Equal(t, []string{"x", "y"}, views[1].Items)
	assert.Equal(t, "paragraph", views[2].Kind)
	assert.Equal(t, []string{"z"}, views[3].Items)
}
