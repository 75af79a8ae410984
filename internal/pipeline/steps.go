package pipeline

import (
	"context"
	"fmt"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
)

// PipelineStep represents a single step in the extraction pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Text      string
	Prompt    string
	RawOutput string
	Fields    Fields
	Result    Result
}

// Step 1: BuildPromptStep embeds the user text in the instruction prompt.
type BuildPromptStep struct{}

func (s *BuildPromptStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Prompt = buildExpensePrompt(state.Text)
	return nil
}

// Step 2: InvokeEngineStep sends the prompt to the engine.
type InvokeEngineStep struct {
	Engine Engine
}

func (s *InvokeEngineStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Engine.Generate(ctx, state.Prompt)
	if err != nil {
		return fmt.Errorf("invoke engine: %w: %w", common.ErrExtractionEngine, err)
	}
	state.RawOutput = raw
	return nil
}

// Step 3: ParseOutputStep decodes the raw engine text.
type ParseOutputStep struct{}

func (s *ParseOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	fields, err := transformModelOutput(state.RawOutput)
	if err != nil {
		return err
	}
	state.Fields = fields
	return nil
}

// Step 4: ClassifyStep turns the decoded fields into a Result.
type ClassifyStep struct{}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := classify(state.Fields)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}
