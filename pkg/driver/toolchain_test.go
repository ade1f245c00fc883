package driver

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultToolchainCommands(t *testing.T) {
	tc := DefaultToolchain()
	assert.False(t, tc.UsesBuiltinCpp())

	argv, err := tc.cppCommand("x.c")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpp", "-nostdinc", "-isystem", "/tmp/include", "x.c"}, argv)

	argv, err = tc.qbeCommand("x.s", "x.q")
	require.NoError(t, err)
	assert.Equal(t, []string{"qbe", "-o", "x.s", "x.q"}, argv)

	argv, err = tc.asCommand("x.o", "x.s")
	require.NoError(t, err)
	assert.Equal(t, []string{"as", "-g", "-o", "x.o", "x.s"}, argv)

	argv, err = tc.linkCommand("a.out", []string{"x.o", "y.o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cc", "-g", "-no-pie", "-o", "a.out", "x.o", "y.o"}, argv)
}

func TestLoadToolchain(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/qbecc.yaml", []byte(`
cpp: builtin
qbe: "'/opt/qbe dev/qbe' -o"
includeDir: ""
`), 0o644))

	tc, err := LoadToolchain(fs, "/etc/qbecc.yaml")
	require.NoError(t, err)
	assert.True(t, tc.UsesBuiltinCpp())
	assert.Empty(t, tc.IncludeDir)

	argv, err := tc.qbeCommand("x.s", "x.q")
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/qbe dev/qbe", "-o", "x.s", "x.q"}, argv)

	def := DefaultToolchain()
	assert.Equal(t, def.As, tc.As, "absent keys keep their defaults")
	assert.Equal(t, def.Link, tc.Link)
	assert.Equal(t, def.Output, tc.Output)
}

func TestLoadToolchainErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("qbe: [unclosed\n"), 0o644))

	_, err := LoadToolchain(fs, "/bad.yaml")
	assert.ErrorContains(t, err, "parsing toolchain config /bad.yaml")

	_, err = LoadToolchain(fs, "/none.yaml")
	assert.ErrorContains(t, err, "reading toolchain config /none.yaml")
}

func TestCommandErrors(t *testing.T) {
	_, err := command("   ", "as")
	assert.EqualError(t, err, "no as command configured")

	_, err = command("qbe 'unterminated", "qbe")
	assert.ErrorContains(t, err, `bad qbe command "qbe 'unterminated"`)
}
