package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	cmd := newQbeccCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-cTM", "-o", "prog", "--config", "tc.yaml", "a.c", "b.c"}))

	flags := cmd.Flags()
	for name, want := range map[string]string{
		"compile":      "true",
		"assembly":     "false",
		"dump-ast":     "true",
		"dump-symbols": "true",
		"verbose":      "false",
		"output":       "prog",
		"config":       "tc.yaml",
	} {
		assert.Equal(t, want, flags.Lookup(name).Value.String(), name)
	}
	assert.Equal(t, []string{"a.c", "b.c"}, flags.Args())
}

func TestNoInputFiles(t *testing.T) {
	cmd := newQbeccCmd()
	cmd.SetArgs([]string{"-c"})
	cmd.SetOut(&bytes.Buffer{})
	assert.EqualError(t, cmd.Execute(), "requires at least 1 arg(s), only received 0")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "plain", errorMessage(errors.New("plain")))

	single := multierror.Append(nil, errors.New("only"))
	assert.Equal(t, "only", errorMessage(single))

	multi := multierror.Append(nil, errors.New("first"), errors.Wrap(errors.New("inner"), "second"))
	assert.Equal(t, "2 errors occurred:\n    1) first\n    2) second: inner", errorMessage(multi))
}

func TestPrintDiag(t *testing.T) {
	color.NoColor = true
	var b bytes.Buffer
	printDiag(&b, "Unknown variable or function:y on line 1 of t.c")
	assert.Equal(t, "Unknown variable or function:y on line 1 of t.c\n", b.String())
}
