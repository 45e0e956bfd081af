// Package analyzer implements the Project Analyzer: given an extraction
// root, it locates the main LaTeX source file, enumerates supporting
// files by category, and parses the declared document class and
// packages, per spec §4.4.
package analyzer

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/texforge/texforge/internal/domain"
	texerrors "github.com/texforge/texforge/pkg/errors"
	"github.com/texforge/texforge/pkg/logger"
)

// knownMainNames is the ordered list of filenames preferred as the main
// source, checked in order before falling back to size/depth heuristics.
var knownMainNames = []string{"main.tex", "document.tex", "finalmanuscript.tex"}

var (
	documentclassRe = regexp.MustCompile(`\\documentclass(?:\[[^\]]*\])?\{([^}]+)\}`)
	usepackageRe    = regexp.MustCompile(`\\usepackage(?:\[[^\]]*\])?\{([^}]+)\}`)
	includegraphicsRe = regexp.MustCompile(`\\(?:includegraphics(?:\[[^\]]*\])?|input|include)\{([^}]+)\}`)
	commentRe       = regexp.MustCompile(`(^|[^\\])%.*$`)
)

var categoryByExt = map[string]string{
	".tex":  "source",
	".cls":  "class",
	".sty":  "style",
	".bib":  "bibliography",
	".bst":  "bibliography-style",
	".png":  "graphics",
	".jpg":  "graphics",
	".jpeg": "graphics",
	".pdf":  "graphics",
	".eps":  "graphics",
	".svg":  "graphics",
}

// MaxDepth bounds the breadth-first traversal when no caller-specific
// value is given.
const MaxDepth = 32

// Analyzer discovers ProjectStructure from an extraction root.
type Analyzer struct {
	maxDepth int
	logger   *logger.Logger
}

// New creates an Analyzer with the given max traversal depth (<=0 uses
// MaxDepth).
func New(maxDepth int, log *logger.Logger) *Analyzer {
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}
	return &Analyzer{maxDepth: maxDepth, logger: log.WithField("component", "project-analyzer")}
}

type fileEntry struct {
	path  string // relative to root, slash-separated
	depth int
	size  int64
}

// Analyze walks root breadth-first (honoring maxDepth, with symlink
// cycle detection), categorizes every supporting file by extension,
// selects the main source file, and parses it for declared class and
// packages.
func (a *Analyzer) Analyze(root string) (*domain.ProjectStructure, error) {
	entries, err := a.walk(root)
	if err != nil {
		return nil, texerrors.WrapFilesystemError(root, "walk", err)
	}

	var texFiles []fileEntry
	ps := &domain.ProjectStructure{}

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.path))
		switch categoryByExt[ext] {
		case "source":
			texFiles = append(texFiles, e)
		case "class":
			ps.ClassFiles = append(ps.ClassFiles, e.path)
		case "style":
			ps.SupportingFiles = append(ps.SupportingFiles, e.path)
		case "bibliography":
			ps.BibliographyFiles = append(ps.BibliographyFiles, e.path)
		case "bibliography-style":
			ps.SupportingFiles = append(ps.SupportingFiles, e.path)
		case "graphics":
			ps.ReferencedGraphics = append(ps.ReferencedGraphics, e.path)
		}
	}

	main, err := a.selectMainSource(root, texFiles)
	if err != nil {
		return nil, err
	}
	ps.MainSourceFile = main.path

	for _, t := range texFiles {
		if t.path != main.path {
			ps.SupportingFiles = append(ps.SupportingFiles, t.path)
		}
	}

	docClass, packages, includes, err := a.parseMain(filepath.Join(root, filepath.FromSlash(main.path)))
	if err != nil {
		return nil, err
	}
	ps.DocumentClass = docClass
	ps.DeclaredPackages = packages
	ps.ReferencedGraphics = append(ps.ReferencedGraphics, includes...)

	sort.Strings(ps.SupportingFiles)
	sort.Strings(ps.ClassFiles)
	sort.Strings(ps.BibliographyFiles)
	sort.Strings(ps.ReferencedGraphics)

	return ps, nil
}

// selectMainSource implements the spec §4.4 selection rule: first match
// among knownMainNames, else the largest .tex file at shallowest depth,
// ties broken lexicographically.
func (a *Analyzer) selectMainSource(root string, texFiles []fileEntry) (fileEntry, error) {
	if len(texFiles) == 0 {
		return fileEntry{}, texerrors.WrapFilesystemError(root, "analyze", texerrors.ErrNoMainSource)
	}

	byName := make(map[string]fileEntry, len(texFiles))
	for _, t := range texFiles {
		base := strings.ToLower(filepath.Base(t.path))
		if _, exists := byName[base]; !exists {
			byName[base] = t
		}
	}
	for _, name := range knownMainNames {
		if t, ok := byName[name]; ok {
			return t, nil
		}
	}

	best := texFiles[0]
	for _, t := range texFiles[1:] {
		switch {
		case t.depth < best.depth:
			best = t
		case t.depth == best.depth && t.size > best.size:
			best = t
		case t.depth == best.depth && t.size == best.size && t.path < best.path:
			best = t
		}
	}
	return best, nil
}

// parseMain extracts \documentclass, \usepackage, and
// \input/\include/\includegraphics references from the main file,
// ignoring commented-out lines.
func (a *Analyzer) parseMain(path string) (docClass string, packages []string, includes []string, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", nil, nil, texerrors.WrapFilesystemError(path, "read-main", readErr)
	}

	content := stripComments(string(data))

	if m := documentclassRe.FindStringSubmatch(content); m != nil {
		docClass = strings.TrimSpace(m[1])
	}

	for _, m := range usepackageRe.FindAllStringSubmatch(content, -1) {
		for _, pkg := range strings.Split(m[1], ",") {
			pkg = strings.TrimSpace(pkg)
			if pkg != "" {
				packages = append(packages, pkg)
			}
		}
	}

	for _, m := range includegraphicsRe.FindAllStringSubmatch(content, -1) {
		ref := strings.TrimSpace(m[1])
		if ref != "" {
			includes = append(includes, ref)
		}
	}

	return docClass, packages, includes, nil
}

// stripComments removes unescaped-% comments line by line, preserving
// line structure so later regexes still see sane input.
func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = commentRe.ReplaceAllString(line, "$1")
	}
	return strings.Join(lines, "\n")
}

// walk performs a breadth-first traversal of root up to a.maxDepth,
// tracking visited (device, inode) pairs via os.SameFile to break
// symlink cycles.
func (a *Analyzer) walk(root string) ([]fileEntry, error) {
	type queued struct {
		path  string
		depth int
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	var entries []fileEntry
	visitedDirs := []os.FileInfo{rootInfo}
	queue := []queued{{path: root, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > a.maxDepth {
			continue
		}

		dirEntries, err := readDirSorted(cur.path)
		if err != nil {
			continue
		}

		for _, de := range dirEntries {
			full := filepath.Join(cur.path, de.Name())
			info, err := os.Lstat(full)
			if err != nil {
				continue
			}

			if info.Mode()&os.ModeSymlink != 0 {
				resolved, err := os.Stat(full)
				if err != nil {
					continue
				}
				if resolved.IsDir() {
					if seen(visitedDirs, resolved) {
						continue
					}
					visitedDirs = append(visitedDirs, resolved)
					queue = append(queue, queued{path: full, depth: cur.depth + 1})
					continue
				}
				info = resolved
			}

			if info.IsDir() {
				if seen(visitedDirs, info) {
					continue
				}
				visitedDirs = append(visitedDirs, info)
				queue = append(queue, queued{path: full, depth: cur.depth + 1})
				continue
			}

			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			entries = append(entries, fileEntry{
				path:  filepath.ToSlash(rel),
				depth: cur.depth + 1,
				size:  info.Size(),
			})
		}
	}

	return entries, nil
}

func seen(visited []os.FileInfo, info os.FileInfo) bool {
	for _, v := range visited {
		if os.SameFile(v, info) {
			return true
		}
	}
	return false
}

func readDirSorted(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}
