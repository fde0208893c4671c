package metadata

import (
	"strings"

	"github.com/microsoft/azchain/internal/argtable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Generate walks root and returns its metadata. root itself is not listed;
// command names are paths below it.
func Generate(schemaVersion, id string, root *cobra.Command) *ExtensionCommandMetadata {
	return &ExtensionCommandMetadata{
		SchemaVersion: schemaVersion,
		ID:            id,
		Commands:      commandsOf(root),
	}
}

func commandsOf(cmd *cobra.Command) []Command {
	var commands []Command
	for _, sub := range cmd.Commands() {
		if sub.Use == "" {
			continue
		}
		c := commandOf(sub)
		if len(c.Name) == 0 {
			continue
		}
		commands = append(commands, c)
	}
	return commands
}

func commandOf(cmd *cobra.Command) Command {
	c := Command{
		Name:       commandPath(cmd),
		Short:      cmd.Short,
		Long:       cmd.Long,
		Usage:      cmd.UseLine(),
		Args:       argsOf(cmd),
		Flags:      flagsOf(cmd),
		Hidden:     cmd.Hidden,
		Aliases:    cmd.Aliases,
		Deprecated: cmd.Deprecated,
	}
	if cmd.Example != "" {
		c.Examples = []CommandExample{{Description: "Usage example", Command: cmd.Example}}
	}
	if cmd.HasSubCommands() {
		c.Subcommands = commandsOf(cmd)
	}
	return c
}

func commandPath(cmd *cobra.Command) []string {
	var path []string
	for cur := cmd; cur != nil && cur.Use != ""; cur = cur.Parent() {
		path = append([]string{cur.Name()}, path...)
	}
	if len(path) > 0 {
		path = path[1:]
	}
	return path
}

// argsOf reads positional arguments from the Use line: <name> is required,
// [name] optional, and a trailing "..." marks the argument variadic.
func argsOf(cmd *cobra.Command) []Argument {
	fields := strings.Fields(cmd.Use)
	if len(fields) < 2 {
		return nil
	}

	var args []Argument
	for _, f := range fields[1:] {
		variadic := strings.HasSuffix(f, "...")
		f = strings.TrimSuffix(f, "...")

		var a Argument
		switch {
		case strings.HasPrefix(f, "<") && strings.HasSuffix(f, ">"):
			a = Argument{Name: f[1 : len(f)-1], Required: true}
		case strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]"):
			a = Argument{Name: f[1 : len(f)-1]}
		default:
			continue
		}
		if a.Name == "flags" {
			continue
		}
		a.Variadic = variadic
		args = append(args, a)
	}
	return args
}

func flagsOf(cmd *cobra.Command) []Flag {
	cmd.InitDefaultHelpFlag()
	var flags []Flag
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		f := Flag{
			Name:        flag.Name,
			Shorthand:   flag.Shorthand,
			Description: flag.Usage,
			Type:        flagType(flag),
			Hidden:      flag.Hidden,
			Deprecated:  flag.Deprecated,
			Required:    isRequired(flag),
			ValidValues: flag.Annotations[argtable.ValidValuesAnnotation],
		}
		if flag.DefValue != "" && flag.DefValue != "[]" {
			f.Default = flag.DefValue
		}
		flags = append(flags, f)
	})
	return flags
}

func isRequired(flag *pflag.Flag) bool {
	req := flag.Annotations[cobra.BashCompOneRequiredFlag]
	return len(req) > 0 && req[0] == "true"
}

func flagType(flag *pflag.Flag) string {
	switch flag.Value.Type() {
	case "bool":
		return "bool"
	case "int", "int32", "int64":
		return "int"
	case "stringSlice", "stringArray":
		return "stringArray"
	case "intSlice":
		return "intArray"
	default:
		return "string"
	}
}
