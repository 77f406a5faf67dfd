package planeval

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidInput marks a candidates file that cannot be evaluated.
var ErrInvalidInput = errors.New("invalid plan input")

// LoadFile reads and decodes the candidates file at path.
func LoadFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a candidates document. Unknown keys are rejected so typos
// in nutrient names don't silently score as zero.
func Decode(r io.Reader) (*Input, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var in Input
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *Input) validate() error {
	if in.Profile == nil && in.Targets == nil {
		return fmt.Errorf("%w: either profile or targets is required", ErrInvalidInput)
	}
	if in.MaxBudget < 0 {
		return fmt.Errorf("%w: max_budget must be non-negative", ErrInvalidInput)
	}
	if len(in.Plans) == 0 {
		return fmt.Errorf("%w: no plans", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(in.Plans))
	for i, p := range in.Plans {
		if p.Name == "" {
			return fmt.Errorf("%w: plans[%d]: name is required", ErrInvalidInput, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: plans[%d]: duplicate name %q", ErrInvalidInput, i, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
