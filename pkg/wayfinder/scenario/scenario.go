// Package scenario runs scripted navigation walks described in YAML.
//
// A scenario declares the modules of one service, the module to start on,
// and a list of steps:
//
//	service: main
//	initial: home
//	modules:
//	  - id: home
//	  - id: settings
//	    lifetime: cached
//	  - id: editor
//	    cancel_leaving: true
//	  - id: picker
//	steps:
//	  - navigate settings
//	  - back
//	  - modal picker
//	  - return blue
//	  - navigate editor mode=draft
//	  - clear
//
// Steps are "navigate <id> [key=value...]", "modal <id> [key=value...]",
// "back [n]", "forward [n]", "return [payload]" and "clear". Every step is
// issued through the Navigator of the participant that is current when the
// step runs.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is a parsed scenario.
type File struct {
	Service         string   `yaml:"service"`
	Initial         string   `yaml:"initial" validate:"required"`
	DisposeOnRemove *bool    `yaml:"dispose_on_remove,omitempty"`
	DefaultLifetime string   `yaml:"default_lifetime,omitempty" validate:"omitempty,oneof=fresh cached"`
	Modules         []Module `yaml:"modules" validate:"required,min=1,unique=ID,dive"`
	Steps           []string `yaml:"steps"`
}

// Module describes one registered module and how its participant behaves.
type Module struct {
	ID             string `yaml:"id" validate:"required"`
	Lifetime       string `yaml:"lifetime,omitempty" validate:"omitempty,oneof=fresh cached"`
	CancelLeaving  bool   `yaml:"cancel_leaving,omitempty"`
	CancelEntering bool   `yaml:"cancel_entering,omitempty"`
	FailEntered    bool   `yaml:"fail_entered,omitempty"`
	SaveCurrent    bool   `yaml:"save_current,omitempty"`
	Payload        any    `yaml:"payload,omitempty"`
}

// Op is a step verb.
type Op string

const (
	OpNavigate Op = "navigate"
	OpModal    Op = "modal"
	OpBack     Op = "back"
	OpForward  Op = "forward"
	OpReturn   Op = "return"
	OpClear    Op = "clear"
)

// Step is one parsed step line.
type Step struct {
	Line    string
	Op      Op
	Target  string
	Steps   int
	Payload string
	Params  map[string]any
}

// ErrBadStep reports a step line that does not parse.
var ErrBadStep = errors.New("bad scenario step")

var validate = validator.New()

// Load reads and parses a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if !f.hasModule(f.Initial) {
		return nil, fmt.Errorf("invalid scenario: initial module %q is not declared", f.Initial)
	}
	if _, err := f.ParseSteps(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) hasModule(id string) bool {
	for _, m := range f.Modules {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ParseSteps parses every step line.
func (f *File) ParseSteps() ([]Step, error) {
	steps := make([]Step, 0, len(f.Steps))
	for i, line := range f.Steps {
		st, err := ParseStep(line)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// ParseStep parses a single step line.
func ParseStep(line string) (Step, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("%w: empty", ErrBadStep)
	}

	st := Step{Line: line, Op: Op(strings.ToLower(fields[0])), Steps: 1}
	args := fields[1:]

	switch st.Op {
	case OpNavigate, OpModal:
		if len(args) == 0 {
			return Step{}, fmt.Errorf("%w: %s needs a module id", ErrBadStep, st.Op)
		}
		st.Target = args[0]
		params, err := parseParams(args[1:])
		if err != nil {
			return Step{}, err
		}
		st.Params = params
	case OpBack, OpForward:
		if len(args) > 1 {
			return Step{}, fmt.Errorf("%w: %s takes at most one count", ErrBadStep, st.Op)
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return Step{}, fmt.Errorf("%w: %s count %q", ErrBadStep, st.Op, args[0])
			}
			st.Steps = n
		}
	case OpReturn:
		st.Payload = strings.Join(args, " ")
	case OpClear:
		if len(args) != 0 {
			return Step{}, fmt.Errorf("%w: clear takes no arguments", ErrBadStep)
		}
	default:
		return Step{}, fmt.Errorf("%w: unknown verb %q", ErrBadStep, fields[0])
	}
	return st, nil
}

func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: parameter %q is not key=value", ErrBadStep, arg)
		}
		params[k] = v
	}
	return params, nil
}
