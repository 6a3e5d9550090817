// Package document is the SVG document engine the shell borrows from
// Inkscape for one command at a time.
//
// It covers only what a session needs: parse the arguments Inkscape
// passed to the extension, load the input file, expose guides, pages,
// canvas and metadata, detect whether anything changed, and serialize
// the result.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// ErrNoInputFile is returned by Load when the arguments named no input
// document. The client always passes one, so this points at a caller bug.
var ErrNoInputFile = errors.New("no input document in extension arguments")

// Options are the parsed extension arguments.
type Options struct {
	InputFile  string
	OutputFile string
	// UserArgs is the free-form text the user typed into the extension
	// dialog.
	UserArgs string
	// Ignored holds --flag=value arguments this engine does not know.
	Ignored []string
}

var knownFlags = map[string]bool{
	"input":     true,
	"output":    true,
	"user-args": true,
}

// Engine parses arguments and loads documents.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ParseArguments parses the extension arguments (program name already
// stripped). The input document may be given with --input or as the first
// positional argument, which is how Inkscape passes it.
func (e *Engine) ParseArguments(args []string) (Options, error) {
	var opts Options
	known, ignored := splitKnown(args)
	opts.Ignored = ignored

	fs := pflag.NewFlagSet("extension", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.InputFile, "input", "", "input document")
	fs.StringVar(&opts.OutputFile, "output", "", "output document")
	fs.StringVar(&opts.UserArgs, "user-args", "", "free-form user arguments")
	if err := fs.Parse(known); err != nil {
		return Options{}, fmt.Errorf("parsing extension arguments: %w", err)
	}

	if rest := fs.Args(); len(rest) > 0 && opts.InputFile == "" {
		opts.InputFile = rest[0]
	}
	return opts, nil
}

// splitKnown separates flags this engine understands from the rest.
// Inkscape always passes extension parameters as --name=value, so an
// unknown flag never consumes the following argument.
func splitKnown(args []string) (known, ignored []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			known = append(known, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "--") {
			known = append(known, arg)
			continue
		}
		name, _, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !knownFlags[name] {
			ignored = append(ignored, arg)
			continue
		}
		known = append(known, arg)
		if !hasValue && i+1 < len(args) {
			i++
			known = append(known, args[i])
		}
	}
	return known, ignored
}

// Load reads the input document named by opts.
func (e *Engine) Load(opts Options) (*Document, error) {
	if opts.InputFile == "" {
		return nil, ErrNoInputFile
	}
	data, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return nil, fmt.Errorf("reading input document: %w", err)
	}
	return Parse(data)
}
