package driver

import (
	"io"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// Runner runs one external command to completion. stdout may be nil when
// the command's output is not needed.
type Runner interface {
	Run(argv []string, stdout io.Writer) error
}

// ExecRunner runs commands as child processes. Their stderr goes to ours.
type ExecRunner struct{}

func (ExecRunner) Run(argv []string, stdout io.Writer) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running %s", shellquote.Join(argv...))
	}
	return nil
}
