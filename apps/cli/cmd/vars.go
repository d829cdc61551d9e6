package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httpbridge/packages/core/env"
)

var (
	envFileFlags []string
	varFlags     []string
)

// addVarFlags registers the placeholder flags shared by fetch and bench
func addVarFlags(c *cobra.Command) {
	c.Flags().StringArrayVar(&envFileFlags, "env-file", nil, "Load {{name}} variables from a .env file (repeatable)")
	c.Flags().StringArrayVar(&varFlags, "var", nil, "Set a {{name}} variable as name=value (repeatable)")
}

// newResolver builds the placeholder resolver from --env-file and --var.
// --var wins over files.
func newResolver() (*env.Resolver, error) {
	r := env.NewResolver()
	if err := r.LoadFiles(envFileFlags...); err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	for _, a := range varFlags {
		name, value, err := env.ParseAssignment(a)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		r.Set(name, value)
	}
	return r, nil
}

// expandAll expands every string in place
func expandAll(r *env.Resolver, values ...*string) error {
	for _, v := range values {
		out, err := r.Expand(*v)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		*v = out
	}
	return nil
}
