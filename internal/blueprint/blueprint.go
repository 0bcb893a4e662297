// Package blueprint generates project blueprints from an LLM provider.
// A request builds the prompts, dispatches one provider call, normalizes the
// returned text and validates the resulting file list.
package blueprint

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/language"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/internal/normalize"
	"github.com/saeedalam/stackforge/internal/provider"
	"github.com/saeedalam/stackforge/pkg/types"
)

// Stage is a step of a single generate or enhance request
type Stage string

const (
	StageIdle             Stage = "idle"
	StageBuildingPrompt   Stage = "building_prompt"
	StageAwaitingProvider Stage = "awaiting_provider"
	StageNormalizing      Stage = "normalizing"
	StageSucceeded        Stage = "succeeded"
	StageFailed           Stage = "failed"
)

// Observer receives stage transitions. It is called synchronously.
type Observer func(Stage)

// Generator produces blueprints. It holds no per-request state, so
// concurrent calls are independent.
type Generator struct {
	factory provider.Factory
	catalog *Catalog
	log     *logger.Logger
	tracer  trace.Tracer
}

// Option configures a Generator
type Option func(*Generator)

// WithCatalog replaces the embedded stack catalog
func WithCatalog(c *Catalog) Option {
	return func(g *Generator) { g.catalog = c }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithTracer sets the tracer used for request spans
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// NewGenerator creates a generator that builds providers with factory
func NewGenerator(factory provider.Factory, opts ...Option) *Generator {
	g := &Generator{
		factory: factory,
		catalog: DefaultCatalog(),
		log:     logger.Nop(),
		tracer:  otel.Tracer("github.com/saeedalam/stackforge/internal/blueprint"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog returns the stack catalog in use
func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// Generate asks the active provider for a fresh project on the given stack.
// Unknown stack ids fall back to the catalog default.
func (g *Generator) Generate(ctx context.Context, projectName, stackID string, settings types.Settings, observe ...Observer) (*types.Blueprint, error) {
	req := &request{
		op:          "generate",
		projectName: projectName,
		observers:   observe,
	}
	return g.run(ctx, req, settings, func() (string, string) {
		stack, found := g.catalog.Lookup(stackID)
		if !found {
			g.log.Debug("unknown stack, using default", "stack", stackID, "default", stack.ID)
		}
		req.attrs = append(req.attrs, attribute.String("stack", stack.ID))
		return generateSystemInstruction(), generatePrompt(projectName, stack)
	})
}

// Enhance asks the active provider to return an improved version of files.
// Empty instructions apply DefaultEnhanceDirective.
func (g *Generator) Enhance(ctx context.Context, files []types.FileRecord, instructions, projectName string, settings types.Settings, observe ...Observer) (*types.Blueprint, error) {
	req := &request{
		op:          "enhance",
		projectName: projectName,
		observers:   observe,
		attrs:       []attribute.KeyValue{attribute.Int("input_files", len(files))},
	}
	return g.run(ctx, req, settings, func() (string, string) {
		return enhanceSystemInstruction(instructions), enhancePrompt(projectName, files)
	})
}

type request struct {
	op          string
	projectName string
	observers   []Observer
	attrs       []attribute.KeyValue
}

func (r *request) enter(span trace.Span, s Stage) {
	span.AddEvent(string(s))
	for _, o := range r.observers {
		if o != nil {
			o(s)
		}
	}
}

func (g *Generator) run(ctx context.Context, req *request, settings types.Settings, build func() (string, string)) (bp *types.Blueprint, err error) {
	ctx, span := g.tracer.Start(ctx, "blueprint."+req.op)
	defer span.End()

	start := time.Now()
	cfg := settings.Active()
	log := g.log.With("op", req.op, "project", req.projectName, "provider", cfg.Provider)

	req.enter(span, StageIdle)
	defer func() {
		span.SetAttributes(req.attrs...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
			req.enter(span, StageFailed)
			log.Warn("blueprint request failed", "kind", apperr.KindOf(err), "elapsed", time.Since(start), "error", err)
			return
		}
		span.SetAttributes(attribute.Int("files", bp.FileCount()))
		req.enter(span, StageSucceeded)
		log.Info("blueprint request succeeded", "files", bp.FileCount(), "elapsed", time.Since(start))
	}()

	// Provider construction rejects missing credentials before any I/O.
	p, err := g.factory(cfg)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", p.Name()))

	req.enter(span, StageBuildingPrompt)
	system, prompt := build()

	req.enter(span, StageAwaitingProvider)
	raw, err := p.Call(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	req.enter(span, StageNormalizing)
	bp, err = normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(bp); err != nil {
		return nil, err
	}
	bp.ProjectName = req.projectName
	return bp, nil
}

// Validate cleans the file list of a normalized blueprint in place: records
// with an empty path are dropped, one leading "/" is stripped, later
// duplicates of a path are dropped and empty languages are classified from
// the path. A blueprint left without files is an IncompleteResponse.
func Validate(bp *types.Blueprint) error {
	if bp == nil {
		return apperr.New(apperr.KindIncompleteResponse, "provider returned no blueprint")
	}

	seen := make(map[string]bool, len(bp.Files))
	files := bp.Files[:0]
	for _, f := range bp.Files {
		f.Path = strings.TrimPrefix(strings.TrimSpace(f.Path), "/")
		if f.Path == "" || seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		if strings.TrimSpace(f.Language) == "" {
			f.Language = language.ForPath(f.Path)
		}
		files = append(files, f)
	}
	bp.Files = files

	if len(bp.Files) == 0 {
		return apperr.New(apperr.KindIncompleteResponse, "provider returned a blueprint without files")
	}
	return nil
}
