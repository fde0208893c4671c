// Package argtable declares cobra flags from a table of argument
// definitions. Each entry carries its type, default, help, whether it is
// required and, for enums, its allowed values. The table binds the
// matching validator or transformer so commands read typed values.
package argtable

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/microsoft/azchain/internal/schedule"
	"github.com/microsoft/azchain/internal/validators"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ValidValuesAnnotation is the flag annotation holding an enum's choices.
// The metadata generator reports it as validValues.
const ValidValuesAnnotation = "azchain_valid_values"

// Kind selects the flag type an Arg is registered as.
type Kind string

const (
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindBool     Kind = "bool"
	KindStrings  Kind = "strings"
	KindDuration Kind = "duration"
	KindTags     Kind = "tags"
	KindTimespan Kind = "timespan"
	KindEnum     Kind = "enum"
)

// Arg is one row of a Table. Default must match Kind: string for string,
// enum and timespan, int for int, bool for bool, []string for strings,
// time.Duration for duration. Tags have no default.
type Arg struct {
	Name     string
	Short    string
	Help     string
	Kind     Kind
	Default  any
	Required bool
	Choices  []string
	Hidden   bool
}

// Table is an ordered list of arguments.
type Table []Arg

// Register declares every argument as a flag on cmd and returns the typed
// accessors. A malformed table panics, as cobra does for duplicate flags.
func (t Table) Register(cmd *cobra.Command) *Values {
	vals := &Values{cmd: cmd, refs: make(map[string]any, len(t))}
	flags := cmd.Flags()

	for _, a := range t {
		if _, dup := vals.refs[a.Name]; dup {
			panic(fmt.Sprintf("argtable: duplicate argument %q", a.Name))
		}

		help := a.Help
		switch a.Kind {
		case KindString:
			vals.refs[a.Name] = flags.StringP(a.Name, a.Short, defaultAs(a, ""), help)
		case KindInt:
			vals.refs[a.Name] = flags.IntP(a.Name, a.Short, defaultAs(a, 0), help)
		case KindBool:
			vals.refs[a.Name] = flags.BoolP(a.Name, a.Short, defaultAs(a, false), help)
		case KindStrings:
			vals.refs[a.Name] = flags.StringSliceP(a.Name, a.Short, defaultAs[[]string](a, nil), help)
		case KindDuration:
			vals.refs[a.Name] = flags.DurationP(a.Name, a.Short, defaultAs[time.Duration](a, 0), help)
		case KindTags:
			v := &tagsValue{tags: map[string]string{}}
			flags.VarP(v, a.Name, a.Short, help+" (key[=value], repeatable)")
			vals.refs[a.Name] = v
		case KindTimespan:
			v, err := schedule.NewTimespanValue(defaultAs(a, ""))
			if err != nil {
				panic(fmt.Sprintf("argtable: default for %q: %v", a.Name, err))
			}
			flags.VarP(v, a.Name, a.Short, help+" ("+schedule.ExpectedTimespan+")")
			vals.refs[a.Name] = v
		case KindEnum:
			if len(a.Choices) == 0 {
				panic(fmt.Sprintf("argtable: enum %q has no choices", a.Name))
			}
			v := &enumValue{choices: a.Choices}
			if def := defaultAs(a, ""); def != "" {
				if err := v.Set(def); err != nil {
					panic(fmt.Sprintf("argtable: default for %q: %v", a.Name, err))
				}
			}
			flags.VarP(v, a.Name, a.Short, fmt.Sprintf("%s (one of: %s)", help, strings.Join(a.Choices, ", ")))
			if err := flags.SetAnnotation(a.Name, ValidValuesAnnotation, a.Choices); err != nil {
				panic(err)
			}
			vals.refs[a.Name] = v
		default:
			panic(fmt.Sprintf("argtable: %q has unknown kind %q", a.Name, a.Kind))
		}

		if a.Required {
			if err := cmd.MarkFlagRequired(a.Name); err != nil {
				panic(err)
			}
		}
		if a.Hidden {
			if err := flags.MarkHidden(a.Name); err != nil {
				panic(err)
			}
		}
	}
	return vals
}

func defaultAs[T any](a Arg, zero T) T {
	if a.Default == nil {
		return zero
	}
	v, ok := a.Default.(T)
	if !ok {
		panic(fmt.Sprintf("argtable: default for %q is %T, want %T", a.Name, a.Default, zero))
	}
	return v
}

// Values reads the parsed arguments of a registered Table. Asking for a
// name the table did not declare, or with the wrong accessor, panics.
type Values struct {
	cmd  *cobra.Command
	refs map[string]any
}

func (v *Values) String(name string) string {
	switch r := v.ref(name).(type) {
	case *string:
		return *r
	case *enumValue:
		return r.value
	case *schedule.TimespanValue:
		return r.String()
	default:
		panic(fmt.Sprintf("argtable: %q is not a string argument", name))
	}
}

func (v *Values) Int(name string) int {
	return *lookup[*int](v, name)
}

func (v *Values) Bool(name string) bool {
	return *lookup[*bool](v, name)
}

func (v *Values) Strings(name string) []string {
	return *lookup[*[]string](v, name)
}

func (v *Values) Duration(name string) time.Duration {
	return *lookup[*time.Duration](v, name)
}

// Tags returns a copy of the parsed tags.
func (v *Values) Tags(name string) map[string]string {
	return maps.Clone(lookup[*tagsValue](v, name).tags)
}

// Cron returns the cron form of a timespan argument.
func (v *Values) Cron(name string) string {
	return lookup[*schedule.TimespanValue](v, name).Cron()
}

// Changed reports whether the argument was set on the command line.
func (v *Values) Changed(name string) bool {
	v.ref(name)
	return v.cmd.Flags().Changed(name)
}

func (v *Values) ref(name string) any {
	r, ok := v.refs[name]
	if !ok {
		panic(fmt.Sprintf("argtable: unknown argument %q", name))
	}
	return r
}

func lookup[T any](v *Values, name string) T {
	r, ok := v.ref(name).(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("argtable: %q is not a %T argument", name, zero))
	}
	return r
}

type tagsValue struct {
	tags map[string]string
}

var _ pflag.Value = (*tagsValue)(nil)

func (t *tagsValue) Set(s string) error {
	parsed, err := validators.ParseTags([]string{s})
	if err != nil {
		return err
	}
	maps.Copy(t.tags, parsed)
	return nil
}

func (t *tagsValue) String() string {
	pairs := make([]string, 0, len(t.tags))
	for _, k := range slices.Sorted(maps.Keys(t.tags)) {
		pairs = append(pairs, k+"="+t.tags[k])
	}
	return strings.Join(pairs, ",")
}

func (t *tagsValue) Type() string { return "tags" }

type enumValue struct {
	choices []string
	value   string
}

var _ pflag.Value = (*enumValue)(nil)

func (e *enumValue) Set(s string) error {
	if !slices.Contains(e.choices, s) {
		return fmt.Errorf("%q is not one of: %s", s, strings.Join(e.choices, ", "))
	}
	e.value = s
	return nil
}

func (e *enumValue) String() string { return e.value }

func (e *enumValue) Type() string { return "string" }
