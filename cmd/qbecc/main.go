// Command qbecc compiles C-like source files to QBE IR and drives qbe, the
// assembler and the linker to build an executable.
package main

import (
	"os"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"qbecc/pkg/driver"
)

func newQbeccCmd() *cobra.Command {
	var verbose bool
	var configFile string
	var opts driver.Options

	cmd := &cobra.Command{
		Use:           "qbecc [-vcSTM] [-o outfile] file...",
		Short:         "Compile C-like source files to QBE IR and build them",
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			v := 0
			if verbose {
				v = 1
			}
			initLogging(v)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			glog.Flush()
		},
		Run: runFunc(func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			tc := driver.DefaultToolchain()
			if configFile != "" {
				var err error
				if tc, err = driver.LoadToolchain(fs, configFile); err != nil {
					return err
				}
			}
			opts.Listing = cmd.OutOrStdout()
			return driver.New(fs, tc, driver.ExecRunner{}, opts).Run(args)
		}),
	}

	flags := cmd.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "give verbose output of the compilation stages")
	flags.BoolVarP(&opts.CompileOnly, "compile", "c", false, "generate object files but don't link them")
	flags.BoolVarP(&opts.AssemblyOnly, "assembly", "S", false, "generate assembly files but don't link them")
	flags.BoolVarP(&opts.DumpAST, "dump-ast", "T", false, "dump the AST trees for each input file")
	flags.BoolVarP(&opts.DumpSymbols, "dump-symbols", "M", false, "dump the symbol table for each input file")
	flags.StringVarP(&opts.Output, "output", "o", "", "produce the outfile executable file")
	flags.StringVar(&configFile, "config", "", "YAML file overriding the toolchain commands")

	return cmd
}

func main() {
	cmd := newQbeccCmd()
	if err := cmd.Execute(); err != nil {
		printDiag(os.Stderr, err.Error())
		_ = cmd.Usage()
		os.Exit(1)
	}
}
