package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jwebster45206/stage-forge/internal/config"
	"github.com/jwebster45206/stage-forge/internal/services"
	"github.com/jwebster45206/stage-forge/pkg/chat"
	"github.com/jwebster45206/stage-forge/pkg/compiler"
	"github.com/jwebster45206/stage-forge/pkg/extract"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

// Module names, in the order the chain calls them.
const (
	ModuleScreenwriter      = "screenwriter"
	ModuleStageDesign       = "stage_design"
	ModuleStageProgrammer   = "stage_programmer"
	ModuleCastingDesign     = "casting_design"
	ModuleCharacterConfig   = "character_config"
	ModuleExecutiveDirector = "executive_director"
)

// RequiredModules must be configured with a prompt template before a run can
// start. stage_programmer is optional: without it Stage.lua has no preamble.
var RequiredModules = []string{
	ModuleScreenwriter,
	ModuleStageDesign,
	ModuleCastingDesign,
	ModuleCharacterConfig,
	ModuleExecutiveDirector,
}

var (
	ErrMissingModules = errors.New("missing module configuration")
	ErrNoConstraints  = errors.New("blueprint has no constraints")
	ErrNoLayout       = errors.New("stage design produced no layout")
)

// StageError reports which module failed.
type StageError struct {
	Module string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Module, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ScriptWriter persists generated scripts and returns name -> location.
type ScriptWriter interface {
	WriteScripts(ctx context.Context, scripts map[string]string) (map[string]string, error)
}

// Pipeline runs the six-module generation chain.
type Pipeline struct {
	llm         services.LLMService
	modules     *config.ModuleStore
	scripts     ScriptWriter
	maxAttempts int
	logger      *slog.Logger
}

// New creates a pipeline. scripts may be nil, in which case nothing is written
// to disk.
func New(llm services.LLMService, modules *config.ModuleStore, scripts ScriptWriter, maxAttempts int, logger *slog.Logger) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = layout.DefaultMaxAttempts
	}
	return &Pipeline{
		llm:         llm,
		modules:     modules,
		scripts:     scripts,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// CheckModules returns ErrMissingModules naming any required module that is
// absent or has an empty prompt template.
func (p *Pipeline) CheckModules() error {
	if missing := p.modules.Missing(RequiredModules); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingModules, strings.Join(missing, ", "))
	}
	return nil
}

// Execute drives run through every stage, filling in its fields as they
// complete. On failure the run is marked failed with the error text and the
// error is returned; fields from earlier stages are kept.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	log := p.logger.With("run_id", run.ID)
	run.Status = StatusRunning

	if err := p.execute(ctx, run, log); err != nil {
		log.Error("Generation failed", "error", err)
		run.finish(StatusFailed, err.Error())
		return err
	}

	run.finish(StatusCompleted, "")
	log.Info("Generation completed", "layout_attempts", run.LayoutAttempts, "layout_valid", run.Validation != nil && run.Validation.Valid)
	return nil
}

func (p *Pipeline) execute(ctx context.Context, run *Run, log *slog.Logger) error {
	if err := p.CheckModules(); err != nil {
		return err
	}

	// 1. Screenwriter: user request -> blueprint with layout constraints
	reply, err := p.call(ctx, ModuleScreenwriter, map[string]string{"user_input": run.UserInput})
	if err != nil {
		return err
	}
	blueprint, err := extract.Object(reply)
	if err != nil {
		return &StageError{Module: ModuleScreenwriter, Err: err}
	}
	run.Blueprint = blueprint

	constraints, err := blueprintConstraints(blueprint)
	if err != nil {
		return &StageError{Module: ModuleScreenwriter, Err: err}
	}
	run.Constraints = constraints
	log.Debug("Blueprint ready", "width", constraints.Grid.Width, "height", constraints.Grid.Height)

	// 2. Stage design: layout candidates, validated and retried
	gen := &designGenerator{p: p, constraints: constraints, blueprint: string(blueprint), log: log}
	outcome, err := layout.ProduceValidLayout(ctx, constraints, gen, p.maxAttempts)
	if outcome != nil {
		run.LayoutAttempts = outcome.Attempts
		run.Layout = outcome.Layout
		run.Validation = outcome.Result
	}
	if err != nil {
		return &StageError{Module: ModuleStageDesign, Err: err}
	}
	if outcome.Layout == nil {
		return &StageError{Module: ModuleStageDesign, Err: fmt.Errorf("%w after %d attempts: %s", ErrNoLayout, outcome.Attempts, firstError(outcome.Result))}
	}
	if !outcome.Result.Valid {
		msg := fmt.Sprintf("layout still invalid after %d attempts: %s", outcome.Attempts, firstError(outcome.Result))
		log.Warn("Using last layout candidate", "reason", msg)
		run.Warnings = append(run.Warnings, msg)
	}
	stageDesign, err := json.Marshal(outcome.Layout)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	// 3. Stage programmer (optional) -> environment preamble, then compile
	preamble := ""
	if m, ok := p.modules.Get(ModuleStageProgrammer); ok && strings.TrimSpace(m.PromptTemplate) != "" {
		reply, err := p.call(ctx, ModuleStageProgrammer, map[string]string{"stage_design": string(stageDesign)})
		if err != nil {
			return err
		}
		preamble = strings.TrimRight(stripCodeFence(reply), "\n")
	}
	run.StageLua = compiler.Render(compiler.Compile(outcome.Layout, preamble))
	if err := compiler.CheckLua(StageScript, run.StageLua); err != nil {
		log.Warn("Stage script does not parse", "error", err)
		run.Warnings = append(run.Warnings, err.Error())
	}

	// 4. Casting design
	reply, err = p.call(ctx, ModuleCastingDesign, map[string]string{
		"blueprint":    string(blueprint),
		"stage_design": string(stageDesign),
	})
	if err != nil {
		return err
	}
	casting := castingText(reply)
	run.CastingDesign = castingJSON(casting)

	// 5. Character config -> Cast.lua
	reply, err = p.call(ctx, ModuleCharacterConfig, map[string]string{"casting_design": casting})
	if err != nil {
		return err
	}
	run.CastLua = stripCodeFence(reply)

	// 6. Executive director -> main.lua
	reply, err = p.call(ctx, ModuleExecutiveDirector, map[string]string{
		"blueprint": string(blueprint),
		"stage_lua": run.StageLua,
		"cast_lua":  run.CastLua,
	})
	if err != nil {
		return err
	}
	run.MainLua = stripCodeFence(reply)

	if p.scripts != nil {
		saved, err := p.scripts.WriteScripts(ctx, run.Scripts())
		if err != nil {
			log.Warn("Failed to save scripts", "error", err)
			run.Warnings = append(run.Warnings, fmt.Sprintf("scripts not saved: %v", err))
		}
		run.SavedFiles = saved
	}
	return nil
}

// call renders a module's template and sends it to the LLM.
func (p *Pipeline) call(ctx context.Context, module string, vars map[string]string) (string, error) {
	m, ok := p.modules.Get(module)
	if !ok {
		return "", &StageError{Module: module, Err: ErrMissingModules}
	}
	prompt, err := RenderTemplate(m.PromptTemplate, vars)
	if err != nil {
		return "", &StageError{Module: module, Err: err}
	}

	p.logger.Debug("Calling module", "module", module, "model", m.Model, "prompt_length", len(prompt))
	reply, err := p.llm.Generate(ctx, prompt, services.GenerateOptions{
		Model:           m.Model,
		SystemPrompt:    chat.DefaultSystemPrompt,
		Temperature:     m.EffectiveTemperature(),
		MaxTokens:       m.EffectiveMaxTokens(),
		JSONMode:        m.JSONMode,
		ReasoningEffort: m.ReasoningEffort,
	})
	if err != nil {
		return "", &StageError{Module: module, Err: err}
	}
	return reply, nil
}

func blueprintConstraints(blueprint json.RawMessage) (*layout.Constraints, error) {
	var bp struct {
		Constraints json.RawMessage `json:"constraints"`
	}
	if err := json.Unmarshal(blueprint, &bp); err != nil {
		return nil, fmt.Errorf("failed to decode blueprint: %w", err)
	}
	if len(bp.Constraints) == 0 || string(bp.Constraints) == "null" {
		return nil, ErrNoConstraints
	}
	return layout.ParseConstraints(bp.Constraints)
}

// castingText prefers the extracted JSON object and falls back to the raw reply.
func castingText(reply string) string {
	if obj, err := extract.Object(reply); err == nil {
		return string(obj)
	}
	return strings.TrimSpace(reply)
}

func castingJSON(text string) json.RawMessage {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}

func firstError(res *layout.ValidationResult) string {
	if res == nil || len(res.Errors) == 0 {
		return "no diagnostics"
	}
	return res.Errors[0].Error()
}

// designGenerator asks stage_design for a new layout on every call. From the
// second attempt on, the prompt carries the previous candidate's diagnostics.
type designGenerator struct {
	p           *Pipeline
	constraints *layout.Constraints
	blueprint   string
	log         *slog.Logger

	attempt  int
	feedback string
}

func (g *designGenerator) Generate(ctx context.Context) (*layout.Layout, error) {
	g.attempt++
	constraints, err := json.Marshal(g.constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}

	reply, err := g.p.call(ctx, ModuleStageDesign, map[string]string{
		"blueprint":   g.blueprint,
		"constraints": string(constraints),
		"attempt":     strconv.Itoa(g.attempt),
		"feedback":    g.feedback,
	})
	if err != nil {
		g.feedback = ""
		return nil, err
	}

	obj, err := extract.Object(reply)
	if err != nil {
		g.feedback = "The previous reply contained no JSON object."
		return nil, fmt.Errorf("%w: %v", layout.ErrInvalidFormat, err)
	}
	candidate, err := layout.DecodeLayout(obj)
	if err != nil {
		g.feedback = "The previous layout could not be decoded: " + err.Error()
		return nil, err
	}

	// Only used to build feedback; the retry loop does its own validation.
	if res, err := layout.Validate(g.constraints, candidate); err == nil && !res.Valid {
		g.feedback = "The previous layout was rejected: " + firstError(res)
		g.log.Debug("Layout candidate rejected", "attempt", g.attempt, "reason", firstError(res))
	} else {
		g.feedback = ""
	}
	return candidate, nil
}
