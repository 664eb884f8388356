package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/slagelwa/mzgzip"

	"github.com/djherbis/atime"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh/terminal"
)

const VERSION = "1.0"

var flagStdout = pflag.BoolP("stdout", "c", false, "write on standard output, keep original files unchanged")
var flagDecompress = pflag.BoolP("decompress", "d", false, "decompress")
var flagForce = pflag.BoolP("force", "f", false, "force overwrite of output file")
var flagHelp = pflag.BoolP("help", "h", false, "give this help")
var flagKeep = pflag.BoolP("keep", "k", false, "keep (don't delete) input files")
var flagLicense = pflag.BoolP("license", "L", false, "display software license")
var flagTest = pflag.BoolP("test", "t", false, "test compressed file integrity")
var flagTestMulti = pflag.BoolP("testmulti", "T", false, "like -t, but also verify the file is MZGF")
var flagVersion = pflag.BoolP("version", "V", false, "display version number")
var flagList = pflag.BoolP("list", "l", false, "list the block index instead of (de)compressing")
var flagVOffset = pflag.StringP("voffset", "v", "", "seek to a virtual offset (from --list) before decompressing")
var flagUOffset = pflag.StringP("uoffset", "u", "", "seek to an uncompressed offset before decompressing")
var flagSize = pflag.Int64P("size", "s", 0, "limit decompression to this many uncompressed bytes (0 = no limit)")

const (
	ModeCompress = iota
	ModeDecompress
	ModeTest
	ModeList
)

var Mode = ModeCompress
var Files []string
var OutFn string
var IsStdoutTerm bool = terminal.IsTerminal(1)

func main() {
	pflag.Parse()
	if *flagHelp {
		Usage()
		return
	}
	if *flagLicense {
		License()
		return
	}
	if *flagVersion {
		fmt.Println("mzgzip", VERSION)
		return
	}

	Files = pflag.Args()
	if len(Files) == 0 {
		Files = []string{"-"}
	}

	binname := filepath.Base(os.Args[0])

	if *flagDecompress || strings.Contains(binname, "gunz") {
		Mode = ModeDecompress
	}
	if *flagTest || *flagTestMulti {
		Mode = ModeTest
	}
	if *flagList {
		Mode = ModeList
	}
	if strings.Contains(binname, "zcat") {
		Mode = ModeDecompress
		*flagStdout = true
	}

	SetSignalHandler()
	os.Exit(run())
}

func SetSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-ch
		os.Remove(OutFn)
	}()
}

func CopyStat(w *os.File, f *os.File) {
	fi, err := f.Stat()
	if err == nil {
		w.Chmod(fi.Mode())
		if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
			w.Chown(int(sys.Uid), int(sys.Gid))
			os.Chtimes(w.Name(), atime.Get(fi), fi.ModTime())
		}
	}
}

func fatal(args ...interface{}) {
	fmt.Fprint(os.Stderr, "mzgzip: ")
	fmt.Fprintln(os.Stderr, args...)
}

func parseSeekFlag(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func processFile(fn string) bool {
	var f *os.File
	var w *os.File

	outStdout := *flagStdout
	if fn == "-" {
		f = os.Stdin
		outStdout = true
	} else {
		var err error
		f, err = os.Open(fn)
		if err != nil {
			fatal(err)
			return false
		}
		defer f.Close()
	}

	if Mode == ModeList {
		return listFile(f, fn)
	}

	if outStdout {
		w = os.Stdout
		if Mode == ModeCompress && IsStdoutTerm && !*flagForce {
			fatal("cannot compress to terminal (use -f to force)")
			return false
		}
	} else {
		var outfn string
		var force bool

		switch Mode {
		case ModeCompress:
			outfn = fn + ".mgz"
			force = *flagForce
		case ModeDecompress:
			ext := filepath.Ext(fn)
			if ext != ".mgz" && ext != ".gz" {
				fatal(fn, "unknown suffix -- ignored")
				return true
			}
			outfn = fn[:len(fn)-len(ext)]
			force = *flagForce
		case ModeTest:
			outfn = os.DevNull
			force = true
		}

		if !force {
			if _, err := os.Stat(outfn); err == nil {
				fmt.Printf("mzgzip: %s already exists; do you wish to overwrite (y or n)? ", outfn)
				reader := bufio.NewReader(os.Stdin)
				input, _ := reader.ReadString('\n')
				if len(input) == 0 || input[0] != 'y' {
					fmt.Println("\tnot overwritten")
					return true
				}
			}
		}

		var err error
		w, err = os.Create(outfn)
		if err != nil {
			fatal(err)
			return false
		}
		if Mode != ModeTest {
			OutFn = outfn
			defer func() { os.Remove(OutFn) }()
		}
		defer w.Close()
	}

	var err error
	switch Mode {
	case ModeCompress:
		_, err = mzgzip.Compress(f, w)
	case ModeDecompress, ModeTest:
		err = decompressFile(f, w)
	}
	if err != nil {
		fatal(err)
		return false
	}

	OutFn = ""
	if Mode != ModeTest {
		CopyStat(w, f)
		if !*flagKeep && fn != "-" {
			os.Remove(fn)
		}
	}
	return true
}

func decompressFile(f *os.File, w io.Writer) error {
	if f == os.Stdin {
		return fmt.Errorf("cannot decompress MZGF from standard input: random access to the EOF member requires a seekable file")
	}
	if *flagTestMulti && !mzgzip.IsMZGF(f) {
		return fmt.Errorf("not an MZGF file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	r, err := mzgzip.NewReader(f)
	if err != nil {
		return err
	}
	defer r.Close()

	if *flagVOffset != "" {
		v, err := parseSeekFlag(*flagVOffset)
		if err != nil {
			return fmt.Errorf("bad --voffset: %w", err)
		}
		if err := r.VSeek(v); err != nil {
			return err
		}
	} else if *flagUOffset != "" {
		u, err := parseSeekFlag(*flagUOffset)
		if err != nil {
			return fmt.Errorf("bad --uoffset: %w", err)
		}
		if err := r.USeek(u); err != nil {
			return err
		}
	}

	return mzgzip.Decompress(r, w, *flagSize)
}

func listFile(f *os.File, fn string) bool {
	if f == os.Stdin {
		fatal("cannot list from standard input: a seekable file is required")
		return false
	}
	r, err := mzgzip.NewReader(f)
	if err != nil {
		fatal(fn, err)
		return false
	}
	defer r.Close()

	listing := mzgzip.List(r)
	fmt.Printf("%s: version %d, mtime %s, %d uncompressed bytes, %d compressed bytes\n",
		fn, listing.Version, listing.MTime.Format("2006-01-02 15:04:05"), listing.UFileSize, listing.ZFileSize)
	for _, e := range listing.Entries {
		fmt.Printf("  voffset=0x%x uoffset=%d\n", e.VOffset, e.UOffset)
	}
	return true
}

func run() int {
	for _, fn := range Files {
		if !processFile(fn) {
			return 1
		}
	}
	return 0
}

func Usage() {
	fmt.Println(`Usage: mzgzip [OPTION]... [FILE]...
Compress or uncompress FILEs (by default, compress FILES in-place) into
the seekable MZGF format, a strict superset of gzip.

Mandatory arguments to long options are mandatory for short options too.

  -c, --stdout      write on standard output, keep original files unchanged
  -d, --decompress  decompress
  -f, --force       force overwrite of output file
  -h, --help        give this help
  -k, --keep        keep (don't delete) input files
  -l, --list        list the block index of an MZGF file
  -L, --license     display software license
  -s, --size=N      limit decompression to N uncompressed bytes
  -t, --test        test compressed file integrity
  -T, --testmulti   like -t, but also verify the file is MZGF
  -u, --uoffset=N   seek to uncompressed offset N before decompressing
  -v, --voffset=N   seek to virtual offset N (from --list) before decompressing
  -V, --version     display version number

With no FILE, or when FILE is -, read standard input.
`)
}

func License() {
	fmt.Println("mzgzip", VERSION)
	fmt.Println(`
Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.`)
}
