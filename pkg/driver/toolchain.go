package driver

import (
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// BuiltinCpp selects the in-process preprocessor instead of an external
// command.
const BuiltinCpp = "builtin"

// Toolchain names the external programs the driver runs. Each command is a
// shell-quoted prefix; the driver appends the file arguments.
type Toolchain struct {
	Cpp        string `yaml:"cpp"`        // preprocessor, or "builtin"
	IncludeDir string `yaml:"includeDir"` // system include directory for cpp
	Qbe        string `yaml:"qbe"`        // IR to assembly, followed by output then input
	As         string `yaml:"as"`         // assembler, followed by output then input
	Link       string `yaml:"link"`       // linker, followed by output then objects
	Output     string `yaml:"output"`     // executable name when -o is absent
}

func DefaultToolchain() Toolchain {
	return Toolchain{
		Cpp:        "cpp -nostdinc -isystem",
		IncludeDir: "/tmp/include",
		Qbe:        "qbe -o",
		As:         "as -g -o",
		Link:       "cc -g -no-pie -o",
		Output:     "a.out",
	}
}

// LoadToolchain reads a YAML toolchain file. Keys that are absent keep
// their default values.
func LoadToolchain(fs afero.Fs, path string) (Toolchain, error) {
	tc := DefaultToolchain()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return tc, errors.Wrapf(err, "reading toolchain config %s", path)
	}
	if err := yaml.Unmarshal(b, &tc); err != nil {
		return tc, errors.Wrapf(err, "parsing toolchain config %s", path)
	}
	return tc, nil
}

// UsesBuiltinCpp reports whether preprocessing happens in process.
func (tc Toolchain) UsesBuiltinCpp() bool { return tc.Cpp == BuiltinCpp }

func (tc Toolchain) cppCommand(file string) ([]string, error) {
	argv, err := command(tc.Cpp, "cpp")
	if err != nil {
		return nil, err
	}
	if tc.IncludeDir != "" {
		argv = append(argv, tc.IncludeDir)
	}
	return append(argv, file), nil
}

func (tc Toolchain) qbeCommand(out, in string) ([]string, error) {
	argv, err := command(tc.Qbe, "qbe")
	if err != nil {
		return nil, err
	}
	return append(argv, out, in), nil
}

func (tc Toolchain) asCommand(out, in string) ([]string, error) {
	argv, err := command(tc.As, "as")
	if err != nil {
		return nil, err
	}
	return append(argv, out, in), nil
}

func (tc Toolchain) linkCommand(out string, objs []string) ([]string, error) {
	argv, err := command(tc.Link, "link")
	if err != nil {
		return nil, err
	}
	argv = append(argv, out)
	return append(argv, objs...), nil
}

func command(s, what string) ([]string, error) {
	argv, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad %s command %q", what, s)
	}
	if len(argv) == 0 {
		return nil, errors.Errorf("no %s command configured", what)
	}
	return argv, nil
}
