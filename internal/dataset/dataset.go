// Package dataset loads the evaluation instances fed to the jury. The
// canonical interchange format is JSON Lines: one instance object per line.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
)

// ErrEmptyDataset indicates a source yielded no instances.
var ErrEmptyDataset = errors.New("dataset contains no instances")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Instance is one dataset row: a medical question, optional supporting
// context and multiple-choice options, and optionally a pre-existing
// response to judge. Instances without a response get one generated by the
// candidate model.
type Instance struct {
	// ID uniquely identifies the instance within the dataset.
	ID string `json:"instance_id" validate:"required"`

	// Question is the medical question.
	Question string `json:"question" validate:"required"`

	// Context is optional supporting literature.
	Context string `json:"context,omitempty"`

	// Options holds multiple-choice options keyed by label.
	Options map[string]string `json:"options,omitempty"`

	// Response is the pre-existing response to judge, when the dataset
	// carries one.
	Response string `json:"response,omitempty"`
}

// Validate checks the instance against its structural constraints.
func (i *Instance) Validate() error { return validate.Struct(i) }

// Source yields evaluation instances.
type Source interface {
	// Load reads every instance. Implementations return ErrEmptyDataset
	// when the source holds nothing to evaluate.
	Load(ctx context.Context) ([]Instance, error)
}

// JSONLSource reads instances from a JSON Lines file.
type JSONLSource struct {
	path string
}

// NewJSONLSource creates a source over the given file path.
func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{path: path}
}

// Load reads and validates every instance in the file. Blank lines are
// skipped; a malformed or invalid line fails the load with its line number,
// since silently dropping instances would skew the harm distribution.
func (s *JSONLSource) Load(ctx context.Context) ([]Instance, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	instances, err := readInstances(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.path, err)
	}
	return instances, nil
}

func readInstances(ctx context.Context, r io.Reader) ([]Instance, error) {
	var instances []Instance
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	// Clinical context fields can be long; allow lines up to 4 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var inst Instance
		if err := json.Unmarshal(line, &inst); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if prev, dup := seen[inst.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate instance id %q (first seen line %d)", lineNo, inst.ID, prev)
		}
		seen[inst.ID] = lineNo

		instances = append(instances, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(instances) == 0 {
		return nil, ErrEmptyDataset
	}
	return instances, nil
}
