// Package normalizer turns verified candidates into listings and applies the
// criteria filter.
package normalizer

import (
	"landscout/internal/models"
)

// Processor runs the transformer and then the criteria filter.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor with default rules.
func NewProcessor(source string) *Processor {
	return NewProcessorWithDeps(NewTransformer(source), NewValidator())
}

// NewProcessorWithDeps creates a processor from explicit parts.
func NewProcessorWithDeps(transformer *Transformer, validator *Validator) *Processor {
	return &Processor{
		validator:   validator,
		transformer: transformer,
	}
}

// Process builds the listing for a verified candidate. A non-nil error is one
// of the filter errors and the listing must not be emitted.
func (p *Processor) Process(cand models.ScoredCandidate, res models.VerificationResult, c models.Criteria, runID string) (*models.Listing, error) {
	listing := p.transformer.Transform(cand, res, runID)

	if err := p.validator.Validate(listing, c); err != nil {
		return nil, err
	}

	return listing, nil
}
