package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/microsoft/azchain/internal/argtable"
	"github.com/microsoft/azchain/internal/validators"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check argument values before using them",
	}
	cmd.AddCommand(newValidatePasswordCommand(), newValidateTagsCommand())
	return cmd
}

func newValidatePasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Check a password read from stdin against the complexity rules",
		Long: fmt.Sprintf(`Reads one line from stdin and checks that it is %d-%d characters long and
contains at least three of: lowercase letters, uppercase letters, digits and
special characters.`, validators.MinPasswordLength, validators.MaxPasswordLength),
		Example: "azchain validate password < secret.txt",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password from stdin: %w", err)
			}
			pw := strings.TrimRight(line, "\r\n")

			if err := validators.ValidatePassword(pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password meets the complexity requirements.") //nolint:errcheck
			return nil
		},
	}
}

var tagsArgs = argtable.Table{
	{Name: "output", Short: "o", Help: "Output format", Kind: argtable.KindEnum, Choices: []string{"text", "json"}, Default: "text"},
	{Name: "require", Help: "Tag keys that must be present", Kind: argtable.KindStrings},
}

func newValidateTagsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tags <key[=value]>...",
		Short:   "Parse tags the way --tag arguments are parsed",
		Example: "azchain validate tags env=prod owner --require env,owner",
		Args:    cobra.MinimumNArgs(1),
	}
	vals := tagsArgs.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		tags, err := validators.ParseTags(args)
		if err != nil {
			return err
		}
		var missing []string
		for _, k := range vals.Strings("require") {
			if _, ok := tags[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required tag(s): %s", strings.Join(missing, ", "))
		}

		out := cmd.OutOrStdout()
		if vals.String("output") == "json" {
			data, err := json.MarshalIndent(tags, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal tags: %w", err)
			}
			_, err = out.Write(append(data, '\n'))
			return err
		}

		for _, k := range slices.Sorted(maps.Keys(tags)) {
			fmt.Fprintf(out, "%s=%s\n", k, tags[k]) //nolint:errcheck
		}
		return nil
	}
	return cmd
}
