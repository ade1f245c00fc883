package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

// initLogging sets glog up without letting it see our command line.
func initLogging(verbose int) {
	if !flag.Parsed() {
		_ = flag.CommandLine.Parse(nil)
	}
	if verbose > 0 {
		_ = flag.Lookup("logtostderr").Value.Set("true")
		_ = flag.Lookup("v").Value.Set(strconv.Itoa(verbose))
	}
}

// runFunc wraps a command body with the single error exit. Nothing below
// it calls os.Exit.
func runFunc(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := run(cmd, args); err != nil {
			glog.V(3).Infof("%+v", err)
			glog.Flush()
			exitError(os.Stderr, errorMessage(err))
		}
	}
}

var diagColor = color.New(color.FgRed, color.Bold)

// exitError prints one diagnostic line and exits with status 1.
func exitError(w io.Writer, msg string) {
	printDiag(w, msg)
	os.Exit(1)
}

func printDiag(w io.Writer, msg string) {
	diagColor.Fprint(w, msg)
	fmt.Fprintln(w)
}

// errorMessage flattens an error for the diagnostic line.
func errorMessage(err error) string {
	if multi, ok := err.(*multierror.Error); ok {
		wr := multi.WrappedErrors()
		if len(wr) == 1 {
			return errorMessage(wr[0])
		}
		msg := fmt.Sprintf("%d errors occurred:", len(wr))
		for i, werr := range wr {
			msg += fmt.Sprintf("\n    %d) %s", i+1, errorMessage(werr))
		}
		return msg
	}
	return err.Error()
}
