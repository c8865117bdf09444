package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/sniff/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides and
report whether the result is valid.

Examples:
  sniff validate -f /etc/sniff/config.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(validateConfigFile, cmd.OutOrStdout())
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(out, "VALID: interface %s, backend %s, %d worker(s), %d x %d byte buffers, output %s\n",
		c.Capture.Interface,
		c.Capture.Backend,
		c.Capture.Workers,
		c.Pool.InitialCount,
		c.Pool.BufferSize,
		c.Output.Format,
	)
	return nil
}
