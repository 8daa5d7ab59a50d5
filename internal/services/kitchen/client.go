package kitchen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/recgen/recgen/internal/errors"
	"github.com/recgen/recgen/internal/httpclient"
	"github.com/recgen/recgen/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	serviceDetection = "detection"
	serviceRecipe    = "recipe"

	// maxErrorBody caps how much of a failed response ends up in error messages.
	maxErrorBody = 512
)

// Image is a picked photo on its way to the detection service.
type Image struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// DetectResult is the detection service's answer. Depending on the deployment
// it carries recipe suggestions or a finished recipe.
type DetectResult struct {
	Detected    []string `json:"detected"`
	Suggestions []string `json:"suggestions,omitempty"`
	Recipe      string   `json:"recipe,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// RecipeResult is the recipe service's answer.
type RecipeResult struct {
	Recipe string `json:"recipe"`
	Error  string `json:"error,omitempty"`
}

type generateRequest struct {
	RecipeName  string   `json:"recipe_name"`
	Ingredients []string `json:"ingredients"`
}

// Client talks to the detection and recipe endpoints.
type Client struct {
	detectURL   string
	generateURL string
	httpClient  *http.Client
}

// NewClient creates a client for the given endpoints. generateURL may be empty
// when the detection service returns recipes directly.
func NewClient(detectURL, generateURL string, timeout time.Duration) *Client {
	return &Client{
		detectURL:   detectURL,
		generateURL: generateURL,
		httpClient:  httpclient.NewInstrumentedClient(timeout),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Detect uploads img as the multipart field "image".
func (c *Client) Detect(ctx context.Context, img Image) (result *DetectResult, err error) {
	defer recordCall(ctx, serviceDetection, time.Now(), &err)

	name := img.Name
	if name == "" {
		name = "image"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(name)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, errors.NewDetectionError("failed to build upload", "DETECT_REQUEST_ERROR", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, errors.NewDetectionError("failed to build upload", "DETECT_REQUEST_ERROR", err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.NewDetectionError("failed to build upload", "DETECT_REQUEST_ERROR", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithService(ctx, serviceDetection), http.MethodPost, c.detectURL, &body)
	if err != nil {
		return nil, errors.NewDetectionError("failed to create detection request", "DETECT_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var res DetectResult
	if err := c.do(req, &res); err != nil {
		return nil, errors.NewDetectionError("detection failed", "DETECT_CALL_FAILED", err)
	}
	if res.Detected == nil {
		res.Detected = []string{}
	}
	return &res, nil
}

// Generate asks the recipe service for the recipe called name.
func (c *Client) Generate(ctx context.Context, name string, ingredients []string) (result *RecipeResult, err error) {
	defer recordCall(ctx, serviceRecipe, time.Now(), &err)

	if c.generateURL == "" {
		return nil, errors.NewRecipeGenerationError("no recipe endpoint configured", "GENERATE_NOT_CONFIGURED", nil)
	}
	if ingredients == nil {
		ingredients = []string{}
	}

	payload, err := json.Marshal(generateRequest{RecipeName: name, Ingredients: ingredients})
	if err != nil {
		return nil, errors.NewRecipeGenerationError("failed to encode recipe request", "GENERATE_REQUEST_ERROR", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithService(ctx, serviceRecipe), http.MethodPost, c.generateURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewRecipeGenerationError("failed to create recipe request", "GENERATE_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var res RecipeResult
	if err := c.do(req, &res); err != nil {
		return nil, errors.NewRecipeGenerationError("generation failed", "GENERATE_CALL_FAILED", err)
	}
	return &res, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(snippet))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func recordCall(ctx context.Context, service string, start time.Time, err *error) {
	outcome := "success"
	if *err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	)
	metrics.ExternalAPIDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	metrics.ExternalAPICallsTotal.Add(ctx, 1, attrs)
}
