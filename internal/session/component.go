package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/recgen/recgen/internal/errors"
	"github.com/recgen/recgen/internal/logger"
	"github.com/recgen/recgen/internal/metrics"
	"github.com/recgen/recgen/internal/services/kitchen"
	"github.com/recgen/recgen/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Alert texts shown to the user.
const (
	AlertNoImage          = "Select an image first!"
	AlertDetectionFailed  = "Detection failed."
	AlertGenerationFailed = "Generation failed."
)

// Service is the remote side of the component.
type Service interface {
	Detect(ctx context.Context, img kitchen.Image) (*kitchen.DetectResult, error)
	Generate(ctx context.Context, name string, ingredients []string) (*kitchen.RecipeResult, error)
}

// DefaultBusyTimeout bounds how long a session stays busy when no timeout is configured.
const DefaultBusyTimeout = 3 * time.Minute

// Component runs the user actions against a Store. It is safe for concurrent
// use; per-session exclusion comes from the Busy flag in the stored state.
type Component struct {
	store       Store
	service     Service
	flow        Flow
	logger      *slog.Logger
	busyTimeout time.Duration
	now         func() time.Time
}

// Option configures a Component.
type Option func(*Component)

// WithBusyTimeout sets how long an action may hold the session before the
// busy flag is treated as abandoned. It should exceed the remote call timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *Component) {
		if d > 0 {
			c.busyTimeout = d
		}
	}
}

// NewComponent creates a component. A nil logger uses slog.Default.
func NewComponent(store Store, service Service, flow Flow, logger *slog.Logger, opts ...Option) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	if flow == "" {
		flow = FlowSuggest
	}
	c := &Component{
		store:       store,
		service:     service,
		flow:        flow,
		logger:      logger,
		busyTimeout: DefaultBusyTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flow returns the configured flow.
func (c *Component) Flow() Flow {
	return c.flow
}

// State returns the current state of a session.
func (c *Component) State(ctx context.Context, id string) (*State, error) {
	state, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, errors.NewInternalError("failed to load session", "SESSION_LOAD_FAILED", err)
	}
	return state, nil
}

// SelectImage replaces the session's image and clears everything derived from
// the previous one. It does not contact any service. Any request still in
// flight for the old image becomes stale.
func (c *Component) SelectImage(ctx context.Context, id string, img Image) (*State, error) {
	if len(img.Data) == 0 {
		return nil, errors.NewValidationError(AlertNoImage, "EMPTY_IMAGE", "Choose a non-empty image file.")
	}

	state, err := c.store.Update(ctx, id, func(s *State) error {
		s.Image = &img
		s.resetDerived()
		s.Busy = false
		s.BusyUntil = time.Time{}
		s.Generation++
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	c.logger.InfoContext(ctx, "Image selected",
		"session_id", id,
		"name", img.Name,
		"content_type", img.ContentType,
		"size", len(img.Data),
	)
	return state, nil
}

// Detect uploads the selected image. In the suggest flow the result carries
// ingredients and suggestions, in the direct flow ingredients and a recipe.
func (c *Component) Detect(ctx context.Context, id string) (*State, error) {
	ctx, span := telemetry.Tracer("session").Start(ctx, "session.Detect")
	defer span.End()
	span.SetAttributes(attribute.String("recipe.flow", string(c.flow)))

	var (
		gen uint64
		img Image
	)
	_, err := c.store.Update(ctx, id, func(s *State) error {
		if !s.HasImage() {
			return errors.NewValidationError(AlertNoImage, "NO_IMAGE_SELECTED", "Pick a photo of your dish, then detect.")
		}
		if s.BusyAt(c.now()) {
			return errors.NewBusyError("A request is already in progress.", "SESSION_BUSY")
		}
		c.markBusy(s)
		gen = s.Generation
		img = *s.Image
		return nil
	})
	if err != nil {
		c.rejected(ctx, id, "detect", err)
		return nil, storeError(err)
	}

	res, callErr := c.service.Detect(ctx, img)

	// The outcome must land even when the caller has gone away, or Busy would stick.
	applyCtx := context.WithoutCancel(ctx)
	stale := false
	state, err := c.store.Update(applyCtx, id, func(s *State) error {
		if s.Generation != gen {
			stale = true
			return nil
		}
		s.Busy = false
		s.BusyUntil = time.Time{}
		if callErr != nil {
			s.resetDerived()
			return nil
		}
		s.resetDerived()
		s.Ingredients = cloneList(res.Detected)
		switch c.flow {
		case FlowDirect:
			s.Recipe = res.Recipe
		default:
			s.Suggestions = cloneList(res.Suggestions)
		}
		s.Error = res.Error
		return nil
	})
	if err != nil {
		c.release(applyCtx, id, "detect", gen, err)
		return nil, storeError(err)
	}

	if stale {
		c.discarded(ctx, id, "detect", gen)
		return state, nil
	}

	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, "detection failed")
		metrics.DetectionsTotal.Add(ctx, 1, outcome("error"))
		c.logger.ErrorContext(ctx, "Detection failed",
			"session_id", id,
			"error", callErr,
			logger.WithTraceContext(ctx),
		)
		return state, errors.NewDetectionError(AlertDetectionFailed, "DETECTION_FAILED", callErr)
	}

	metrics.DetectionsTotal.Add(ctx, 1, outcome("success"))
	span.SetAttributes(
		attribute.Int("recipe.ingredients", len(state.Ingredients)),
		attribute.Int("recipe.suggestions", len(state.Suggestions)),
	)
	c.logger.InfoContext(ctx, "Detection completed",
		"session_id", id,
		"ingredients", len(state.Ingredients),
		"suggestions", len(state.Suggestions),
		"has_recipe", state.Recipe != "",
		"service_error", state.Error,
	)
	return state, nil
}

// PickRecipe asks the recipe service for the suggestion at index, using the
// detected ingredients. On failure the previous recipe and selection stay.
func (c *Component) PickRecipe(ctx context.Context, id string, index int) (*State, error) {
	ctx, span := telemetry.Tracer("session").Start(ctx, "session.PickRecipe")
	defer span.End()
	span.SetAttributes(attribute.Int("recipe.index", index))

	if c.flow != FlowSuggest {
		return nil, errors.NewValidationError("Recipes come with detection in this mode.", "PICK_NOT_SUPPORTED", "")
	}

	var (
		gen         uint64
		name        string
		ingredients []string
	)
	_, err := c.store.Update(ctx, id, func(s *State) error {
		if s.BusyAt(c.now()) {
			return errors.NewBusyError("A request is already in progress.", "SESSION_BUSY")
		}
		if index < 0 || index >= len(s.Suggestions) {
			return errors.NewValidationError("No such recipe suggestion.", "INVALID_RECIPE_INDEX", "Detect ingredients, then pick one of the suggestions.")
		}
		c.markBusy(s)
		gen = s.Generation
		name = s.Suggestions[index]
		ingredients = cloneList(s.Ingredients)
		return nil
	})
	if err != nil {
		c.rejected(ctx, id, "pick", err)
		return nil, storeError(err)
	}
	span.SetAttributes(attribute.String("recipe.name", name))

	res, callErr := c.service.Generate(ctx, name, ingredients)

	applyCtx := context.WithoutCancel(ctx)
	stale := false
	state, err := c.store.Update(applyCtx, id, func(s *State) error {
		if s.Generation != gen {
			stale = true
			return nil
		}
		s.Busy = false
		s.BusyUntil = time.Time{}
		if callErr != nil {
			return nil
		}
		s.Recipe = res.Recipe
		s.Selected = index
		s.Error = res.Error
		return nil
	})
	if err != nil {
		c.release(applyCtx, id, "pick", gen, err)
		return nil, storeError(err)
	}

	if stale {
		c.discarded(ctx, id, "pick", gen)
		return state, nil
	}

	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, "generation failed")
		metrics.RecipeGenerationsTotal.Add(ctx, 1, outcome("error"))
		c.logger.ErrorContext(ctx, "Recipe generation failed",
			"session_id", id,
			"recipe", name,
			"error", callErr,
			logger.WithTraceContext(ctx),
		)
		return state, errors.NewRecipeGenerationError(AlertGenerationFailed, "GENERATION_FAILED", callErr)
	}

	metrics.RecipeGenerationsTotal.Add(ctx, 1, outcome("success"))
	c.logger.InfoContext(ctx, "Recipe generated",
		"session_id", id,
		"recipe", name,
		"length", len(state.Recipe),
	)
	return state, nil
}

// markBusy claims the session for one remote call and starts a new generation.
func (c *Component) markBusy(s *State) {
	s.Busy = true
	s.BusyUntil = c.now().Add(c.busyTimeout)
	s.Generation++
}

// release clears the busy flag after the outcome could not be stored, so the
// session is not locked until its deadline. The outcome itself is lost.
func (c *Component) release(ctx context.Context, id, action string, gen uint64, cause error) {
	_, err := c.store.Update(ctx, id, func(s *State) error {
		if s.Generation == gen {
			s.Busy = false
			s.BusyUntil = time.Time{}
		}
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to release busy session",
			"session_id", id,
			"action", action,
			"error", err,
			"cause", cause,
		)
		return
	}
	c.logger.WarnContext(ctx, "Dropped action outcome after store failure",
		"session_id", id,
		"action", action,
		"error", cause,
	)
}

func (c *Component) rejected(ctx context.Context, id, action string, err error) {
	if !errors.IsType(err, errors.ErrorTypeBusy) {
		return
	}
	metrics.BusyRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	c.logger.WarnContext(ctx, "Action rejected while busy", "session_id", id, "action", action)
}

func (c *Component) discarded(ctx context.Context, id, action string, gen uint64) {
	metrics.StaleResponsesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	c.logger.WarnContext(ctx, "Discarded stale response",
		"session_id", id,
		"action", action,
		"generation", gen,
	)
}

func outcome(v string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}

// storeError passes AppErrors through and wraps store failures.
func storeError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternalError("failed to update session", "SESSION_UPDATE_FAILED", err)
}
