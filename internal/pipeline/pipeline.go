package pipeline

import (
	"context"
	"fmt"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewExpensePipeline creates the standard 4-step expense extraction pipeline.
func NewExpensePipeline(engine Engine) *Pipeline {
	return NewPipeline(
		&BuildPromptStep{},
		&InvokeEngineStep{Engine: engine},
		&ParseOutputStep{},
		&ClassifyStep{},
	)
}

// Run extracts an expense from text and returns the full state, including
// the prompt and raw engine output. Errors wrap common.ErrExtractionEngine.
func (p *Pipeline) Run(ctx context.Context, text string) (*PipelineState, error) {
	state := &PipelineState{Text: text}
	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// Extract returns only the classified Result for text.
func (p *Pipeline) Extract(ctx context.Context, text string) (Result, error) {
	state, err := p.Run(ctx, text)
	if err != nil {
		return nil, err
	}
	return state.Result, nil
}
