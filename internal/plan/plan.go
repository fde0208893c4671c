// Package plan loads chain plan files: YAML documents that list the steps
// of a chain by kind and parameters.
package plan

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/microsoft/azchain/internal/stepchain"
	"github.com/microsoft/azchain/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	ErrCodeInvalidPlan     = "AZCHAIN_INVALID_PLAN"
	ErrCodeUnknownStepKind = "AZCHAIN_UNKNOWN_STEP_KIND"
)

var defaultPrinter = message.NewPrinter(language.English)

var planSchema = mustCompileSchema(schemas.PlanSchemaJSON, "plan.schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Plan is a parsed plan file.
type Plan struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Defaults    map[string]any `yaml:"defaults,omitempty"`
	Steps       []StepSpec     `yaml:"steps"`
}

// StepSpec is one entry of a plan's steps list.
type StepSpec struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Resolver looks up the capability for a step kind. *azsteps.Registry
// satisfies it.
type Resolver interface {
	Capability(kind string) (stepchain.Capability, bool)
}

// Load reads and parses the plan file at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidPlan, fmt.Sprintf("plan %s", path)).
			WithContext("path", path)
	}
	return p, nil
}

// Parse validates data against the plan schema and decodes it.
func Parse(data []byte) (*Plan, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidPlan, "plan is not valid YAML")
	}

	if problems := validateAgainstSchema(planSchema, toJSONCompatible(doc)); len(problems) > 0 {
		return nil, invalidPlan(problems)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidPlan, "decoding plan")
	}

	seen := make(map[string]int, len(p.Steps))
	var problems []string
	for i, s := range p.Steps {
		if first, dup := seen[s.Name]; dup {
			problems = append(problems, fmt.Sprintf("/steps/%d/name: %q is already used by step %d", i, s.Name, first))
			continue
		}
		seen[s.Name] = i
	}
	if len(problems) > 0 {
		return nil, invalidPlan(problems)
	}

	return &p, nil
}

// Build resolves every step's kind against r and returns the steps of a
// chain. Parameters are layered: defaults, then the plan's own defaults,
// then the step's params. Later layers win, except that tags maps are
// merged key by key. Each step gets its own copy of the merged params.
func (p *Plan) Build(r Resolver, defaults map[string]any) ([]stepchain.Step, error) {
	steps := make([]stepchain.Step, 0, len(p.Steps))
	for i, s := range p.Steps {
		start, ok := r.Capability(s.Kind)
		if !ok {
			return nil, errors.New(ErrCodeUnknownStepKind,
				fmt.Sprintf("step %q uses unknown kind %q", s.Name, s.Kind)).
				WithContext("step", s.Name).
				WithContext("index", i).
				WithContext("kind", s.Kind)
		}

		steps = append(steps, stepchain.Step{
			Name:   s.Name,
			Start:  start,
			Params: layerParams(defaults, p.Defaults, s.Params),
		})
	}
	return steps, nil
}

// TagsParam is the params key whose map value is merged across layers.
const TagsParam = "tags"

func layerParams(layers ...map[string]any) stepchain.Params {
	params := stepchain.Params{}
	for _, layer := range layers {
		for k, v := range layer {
			if k == TagsParam {
				if tags, ok := mergeTags(params[k], v); ok {
					params[k] = tags
					continue
				}
			}
			params[k] = v
		}
	}
	return params
}

// mergeTags overlays next onto prev in a new map. It reports false when
// next is not a map, leaving the value for parameter validation to reject.
func mergeTags(prev, next any) (map[string]any, bool) {
	overlay, ok := stringMap(next)
	if !ok {
		return nil, false
	}
	merged, ok := stringMap(prev)
	if !ok || merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, overlay)
	return merged, true
}

// stringMap copies the tag maps the CLI and YAML produce.
func stringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return maps.Clone(m), true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func invalidPlan(problems []string) error {
	return errors.New(ErrCodeInvalidPlan,
		"plan is invalid:\n  "+strings.Join(problems, "\n  ")).
		WithContext("problems", len(problems))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var problems []string
	collectSchemaErrors(ve, &problems)
	return problems
}

func collectSchemaErrors(ve *jsonschema.ValidationError, problems *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*problems = append(*problems, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, problems)
	}
}

// toJSONCompatible rewrites maps with non-string keys, which yaml.v3
// produces for documents like `1: x`, into string-keyed maps.
func toJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k] = toJSONCompatible(v2)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[fmt.Sprint(k)] = toJSONCompatible(v2)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = toJSONCompatible(v2)
		}
		return out
	default:
		return val
	}
}
