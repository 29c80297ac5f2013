package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	versionString     = "0.3.0"
	defaultConfigPath = "./yarasynth.toml"
)

type cliOptions struct {
	configPath      string
	resultDir       string
	identifiersPath string
	watch           bool
	strict          bool
	verbose         bool
}

// newRootCommand builds the command tree. The synthesis exit code is stored in code because
// cobra only distinguishes success from error.
func newRootCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	opts := cliOptions{}

	root := &cobra.Command{
		Use:   "yarasynth",
		Short: "Synthesize YARA rules from BANG analysis results",
		Long: "yarasynth reads the BANG result directories below --result-directory and writes one\n" +
			"YARA rule per ELF or DEX artifact plus an aggregate rule file per package.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*code = runSynthesis(cmd.Context(), opts, cmd.Flags().Changed("config"), stdout, stderr)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to configuration file")
	flags.StringVarP(&opts.resultDir, "result-directory", "r", "", "directory holding BANG package result directories")
	flags.StringVarP(&opts.identifiersPath, "identifiers", "i", "", "YAML file with low quality identifiers to skip")
	flags.BoolVar(&opts.watch, "watch", false, "keep running and process new package directories as they appear")
	flags.BoolVar(&opts.strict, "strict", false, "exit with code 3 when any package job failed")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	_ = root.MarkFlagRequired("result-directory")

	root.AddCommand(newVersionCmd(stdout))
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "yarasynth v%s\n", versionString)
		},
	}
}
