// Package metadata describes the azchain command tree in the azd extension
// metadata format. The types follow azd's pkg/extensions schema field for
// field; the metadata command tests decode the output with the upstream
// types to keep the two in step.
package metadata

// ExtensionCommandMetadata is the document azd reads from `azchain metadata`.
type ExtensionCommandMetadata struct {
	SchemaVersion string    `json:"schemaVersion"`
	ID            string    `json:"id"`
	Commands      []Command `json:"commands"`
}

type Command struct {
	Name        []string         `json:"name"`
	Short       string           `json:"short"`
	Long        string           `json:"long,omitempty"`
	Usage       string           `json:"usage,omitempty"`
	Examples    []CommandExample `json:"examples,omitempty"`
	Args        []Argument       `json:"args,omitempty"`
	Flags       []Flag           `json:"flags,omitempty"`
	Subcommands []Command        `json:"subcommands,omitempty"`
	Hidden      bool             `json:"hidden,omitempty"`
	Aliases     []string         `json:"aliases,omitempty"`
	Deprecated  string           `json:"deprecated,omitempty"`
}

type CommandExample struct {
	Description string `json:"description"`
	Command     string `json:"command"`
}

// Argument is a positional argument, read from the command's Use line.
type Argument struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Variadic    bool     `json:"variadic,omitempty"`
	ValidValues []string `json:"validValues,omitempty"`
}

// Flag is a command-line flag. Required and ValidValues come from the
// flag's annotations.
type Flag struct {
	Name        string   `json:"name"`
	Shorthand   string   `json:"shorthand,omitempty"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Default     any      `json:"default,omitempty"`
	Required    bool     `json:"required,omitempty"`
	ValidValues []string `json:"validValues,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
	Deprecated  string   `json:"deprecated,omitempty"`
}
