// Package driver runs the per-file pipeline around the compiler: preprocess,
// compile to QBE IR, translate with qbe, assemble, and finally link every
// object into one executable.
package driver

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"qbecc/pkg/compiler"
)

// Options mirror the command line switches.
type Options struct {
	CompileOnly  bool // -c: stop after assembling, keep the objects
	AssemblyOnly bool // -S: stop after qbe, keep the .q and .s files
	DumpAST      bool // -T
	DumpSymbols  bool // -M
	Output       string
	Listing      io.Writer // destination of the -T and -M listings
}

func (o Options) link() bool     { return !o.CompileOnly && !o.AssemblyOnly }
func (o Options) assemble() bool { return !o.AssemblyOnly }

type Driver struct {
	Fs        afero.Fs
	Toolchain Toolchain
	Runner    Runner
	Opts      Options

	temps []string // intermediates to delete once the run is over
}

func New(fs afero.Fs, tc Toolchain, runner Runner, opts Options) *Driver {
	if opts.Listing == nil {
		opts.Listing = os.Stdout
	}
	return &Driver{Fs: fs, Toolchain: tc, Runner: runner, Opts: opts}
}

// Run builds every input file in order. The first failure stops the run;
// intermediates created so far and the partial output of the failing
// stage are removed before the error is returned.
func (d *Driver) Run(files []string) error {
	if len(files) == 0 {
		return errors.New("no input files")
	}

	var objs []string
	for _, file := range files {
		obj, err := d.build(file)
		if err != nil {
			d.abandon()
			return err
		}
		if obj != "" {
			objs = append(objs, obj)
		}
	}

	if d.Opts.link() {
		if err := d.link(objs); err != nil {
			d.abandon()
			return err
		}
	}
	return d.cleanup()
}

// build takes one source file as far as the options ask and returns the
// object file name, if one was made.
func (d *Driver) build(file string) (string, error) {
	qfile, err := d.compile(file)
	if err != nil {
		return "", err
	}
	if d.Opts.assemble() {
		d.temps = append(d.temps, qfile)
	}
	sfile, err := d.qbe(qfile)
	if err != nil {
		return "", err
	}
	if !d.Opts.assemble() {
		return "", nil
	}
	d.temps = append(d.temps, sfile)

	obj, err := d.assembleFile(sfile)
	if err != nil {
		return "", err
	}
	if d.Opts.link() {
		d.temps = append(d.temps, obj)
	}
	return obj, nil
}

// compile preprocesses file and writes its IR next to it with a .q suffix.
func (d *Driver) compile(file string) (string, error) {
	qfile, err := alterSuffix(file, 'q')
	if err != nil {
		return "", errors.Errorf("%s has no suffix, try .c on the end", file)
	}
	glog.V(1).Infof("compiling %s", file)

	src, err := d.preprocess(file)
	if err != nil {
		return "", err
	}

	opts := compiler.Options{}
	if d.Opts.DumpAST {
		opts.ASTDump = d.Opts.Listing
	}
	if d.Opts.DumpSymbols {
		opts.SymbolDump = d.Opts.Listing
	}

	var ir bytes.Buffer
	if err := compiler.Compile(src, file, &ir, opts); err != nil {
		d.removePartial(qfile)
		return "", errors.WithStack(err)
	}
	if err := afero.WriteFile(d.Fs, qfile, ir.Bytes(), 0o644); err != nil {
		d.removePartial(qfile)
		return "", errors.Wrapf(err, "Unable to create %s", qfile)
	}
	glog.V(1).Infof("wrote %s (%s)", qfile, humanize.Bytes(uint64(ir.Len())))
	return qfile, nil
}

func (d *Driver) preprocess(file string) (string, error) {
	if d.Toolchain.UsesBuiltinCpp() {
		var dirs []string
		if d.Toolchain.IncludeDir != "" {
			dirs = append(dirs, d.Toolchain.IncludeDir)
		}
		src, err := compiler.NewPreprocessor(d.Fs, dirs...).File(file)
		if err != nil {
			return "", errors.Wrapf(err, "Unable to open %s", file)
		}
		return src, nil
	}

	argv, err := d.Toolchain.cppCommand(file)
	if err != nil {
		return "", err
	}
	glog.V(1).Infof("%s", shellquote.Join(argv...))
	var out bytes.Buffer
	if err := d.Runner.Run(argv, &out); err != nil {
		return "", errors.Wrapf(err, "Unable to open %s", file)
	}
	return out.String(), nil
}

func (d *Driver) qbe(qfile string) (string, error) {
	sfile, err := alterSuffix(qfile, 's')
	if err != nil {
		return "", errors.Errorf("%s has no suffix, try .qbe on the end", qfile)
	}
	argv, err := d.Toolchain.qbeCommand(sfile, qfile)
	if err != nil {
		return "", err
	}
	if err := d.run(argv, sfile); err != nil {
		return "", errors.Wrapf(err, "QBE translation of %s failed", qfile)
	}
	return sfile, nil
}

func (d *Driver) assembleFile(sfile string) (string, error) {
	obj, err := alterSuffix(sfile, 'o')
	if err != nil {
		return "", errors.Errorf("%s has no suffix, try .s on the end", sfile)
	}
	argv, err := d.Toolchain.asCommand(obj, sfile)
	if err != nil {
		return "", err
	}
	if err := d.run(argv, obj); err != nil {
		return "", errors.Wrapf(err, "Assembly of %s failed", sfile)
	}
	return obj, nil
}

func (d *Driver) link(objs []string) error {
	out := d.Opts.Output
	if out == "" {
		out = d.Toolchain.Output
	}
	argv, err := d.Toolchain.linkCommand(out, objs)
	if err != nil {
		return err
	}
	if err := d.run(argv, out); err != nil {
		return errors.Wrap(err, "Linking failed")
	}
	return nil
}

// run echoes and runs a toolchain command that produces output. A
// failed command's output is removed.
func (d *Driver) run(argv []string, output string) error {
	glog.V(1).Infof("%s", shellquote.Join(argv...))
	if err := d.Runner.Run(argv, nil); err != nil {
		d.removePartial(output)
		return err
	}
	if fi, err := d.Fs.Stat(output); err == nil {
		glog.V(1).Infof("wrote %s (%s)", output, humanize.Bytes(uint64(fi.Size())))
	}
	return nil
}

// cleanup deletes the intermediates of a successful run.
func (d *Driver) cleanup() error {
	var result error
	for _, f := range d.temps {
		glog.V(1).Infof("removing %s", f)
		if err := d.Fs.Remove(f); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, errors.Wrapf(err, "removing %s", f))
		}
	}
	d.temps = nil
	return result
}

// abandon deletes the intermediates after a failure. The original error
// is what gets reported, so removal problems are only logged.
func (d *Driver) abandon() {
	if err := d.cleanup(); err != nil {
		glog.Warningf("cleaning up after failure: %v", err)
	}
}

func (d *Driver) removePartial(file string) {
	if err := d.Fs.Remove(file); err != nil && !os.IsNotExist(err) {
		glog.Warningf("removing partial output %s: %v", file, err)
	}
}

// alterSuffix replaces the suffix of file with the single character c.
// A name with no suffix is an error.
func alterSuffix(file string, c byte) (string, error) {
	ext := filepath.Ext(file)
	if ext == "" || ext == "." {
		return "", errors.Errorf("%s has no suffix", file)
	}
	return strings.TrimSuffix(file, ext) + "." + string(c), nil
}
