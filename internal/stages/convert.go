package stages

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/pkg/logger"
)

// RequiredModules is the fixed module pre-load list spec §4.8 demands.
var RequiredModules = []string{"amsmath", "amssymb", "graphicx", "overpic"}

// ConvertResult carries the outcome of the conversion stage. Unlike
// compilation, a non-zero exit here is never recoverable: the stage
// fails outright.
type ConvertResult struct {
	ExitCode  int
	Stderr    string
	Stdout    string
	TimedOut  bool
	Cancelled bool
	HTMLPath  string
}

// Converter invokes the TeX→HTML converter.
type Converter struct {
	runner  *process.Runner
	binPath string
	logger  *logger.Logger
}

// NewConverter creates a Converter invoking binPath (e.g. make4ht).
func NewConverter(runner *process.Runner, binPath string, log *logger.Logger) *Converter {
	return &Converter{runner: runner, binPath: binPath, logger: log.WithField("component", "convert-stage")}
}

// Run invokes the converter on mainSource with the computed search
// paths, writing its HTML output under outDir. Required options
// (disable comments, enable caching and parallelism, pre-load
// RequiredModules) are always passed per spec §4.8.
func (c *Converter) Run(ctx context.Context, mainSource string, searchPaths []string, outDir string, timeout time.Duration) (*ConvertResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	base := filepath.Base(mainSource)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	htmlPath := filepath.Join(outDir, stem+".html")

	argv := []string{c.binPath, mainSource, "html"}
	argv = append(argv, "--output-dir", outDir)
	argv = append(argv, "--no-comments")
	argv = append(argv, "--cache")
	argv = append(argv, "--parallel")
	for _, mod := range RequiredModules {
		argv = append(argv, "--preload", mod)
	}
	for _, p := range searchPaths {
		argv = append(argv, "--path", p)
	}

	allowList := map[string]bool{c.binPath: true}
	res, err := c.runner.Run(ctx, argv, nil, filepath.Dir(mainSource), nil, timeout, allowList)
	if err != nil {
		return nil, err
	}

	return &ConvertResult{
		ExitCode:  res.ExitCode,
		Stderr:    string(res.Stderr),
		Stdout:    string(res.Stdout),
		TimedOut:  res.TimedOut,
		Cancelled: res.Cancelled,
		HTMLPath:  htmlPath,
	}, nil
}

// SearchPaths computes the list of directories the converter should
// search, per spec §4.8: the project directory, each supporting-source
// parent directory up to 5 levels above, and every subdirectory
// discovered by a breadth-first walk honoring maxDepth.
func SearchPaths(projectDir string, supportingFiles []string, maxDepth int) []string {
	seen := map[string]bool{}
	var paths []string

	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	add(projectDir)

	for _, f := range supportingFiles {
		dir := filepath.Dir(filepath.Join(projectDir, filepath.FromSlash(f)))
		for levels := 0; levels < 5; levels++ {
			add(dir)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	_ = filepathWalkSubdirs(projectDir, maxDepth, add)

	sort.Strings(paths)
	return paths
}

// filepathWalkSubdirs adds every subdirectory of root up to maxDepth to
// the collector via a breadth-first traversal.
func filepathWalkSubdirs(root string, maxDepth int, add func(string)) error {
	type queued struct {
		path  string
		depth int
	}
	queue := []queued{{path: root, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > maxDepth {
			continue
		}

		entries, err := os.ReadDir(cur.path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			full := filepath.Join(cur.path, e.Name())
			add(full)
			queue = append(queue, queued{path: full, depth: cur.depth + 1})
		}
	}
	return nil
}
