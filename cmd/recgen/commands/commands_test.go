package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	// flags are package level; start every run from the defaults
	format = formatText

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRender_Stdin(t *testing.T) {
	out, err := run(t, "Title: Soup\nIngredients:\n- Carrot\nStep 1: Boil", "render")

	require.NoError(t, err)
	assert.Equal(t, "Soup\n====\n\nIngredients\n-----------\n  • Carrot\nStep 1: Boil\n", out)
}

func TestRender_FileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.md")
	require.NoError(t, os.WriteFile(path, []byte("# **Title:** Pie\n- apples"), 0o600))

	out, err := run(t, "", "render", path, "--format", "json")

	require.NoError(t, err)
	var got struct {
		Title  string `json:"title"`
		Blocks []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Pie", got.Title)
	require.Len(t, got.Blocks, 2)
	assert.Equal(t, "item", got.Blocks[1].Kind)
}

func TestRender_Raw(t *testing.T) {
	out, err := run(t, "**Step 1:** Boil", "render", "--raw")

	require.NoError(t, err)
	assert.Equal(t, "**Step 1:** Boil\n", out)
}

func TestRender_BadFormat(t *testing.T) {
	_, err := run(t, "x", "render", "--format", "yaml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detected":["carrot","kale"],"suggestions":["Soup"]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "dish.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))

	out, err := run(t, "", "detect", path, "--detect-url", srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Ingredients:\n  🥕 carrot\n  🥗 kale\nSuggestions:\n  [0] Soup\n", out)
}

func TestDetect_RejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	_, err := run(t, "", "detect", path, "--detect-url", "http://127.0.0.1:1")
	assert.ErrorContains(t, err, "Unsupported file type")
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"recipe":"Title: Soup\nStep 1: Boil"}`))
	}))
	defer srv.Close()

	out, err := run(t, "", "generate", "--generate-url", srv.URL, "-n", "Soup", "-i", "carrot", "-i", "water")

	require.NoError(t, err)
	assert.Equal(t, "Soup", body["recipe_name"])
	assert.Equal(t, []any{"carrot", "water"}, body["ingredients"])
	assert.Equal(t, "Soup\n====\nStep 1: Boil\n", out)
}

func TestGenerate_RequiresName(t *testing.T) {
	_, err := run(t, "", "generate", "--generate-url", "http://127.0.0.1:1")
	assert.ErrorContains(t, err, "--name is required")
}
