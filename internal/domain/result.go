package domain

// ConversionResult is populated on a Job that reaches StatusCompleted.
type ConversionResult struct {
	HTMLPath    string
	Assets      []string
	Score       int // 0-100 quality heuristic
	Warnings    []string
	Diagnostics map[string]string
}

// ConversionFailure is populated on a Job that reaches StatusFailed. Kind
// mirrors the closed set of error kinds in errors.Kind; it is stored as
// a plain string here to keep this package free of a dependency on the
// errors package's concrete type.
type ConversionFailure struct {
	Kind        string
	Message     string
	Stage       StageName
	Suggestions []string
	Stderr      string // captured tool stderr, bounded to <=64KiB by the caller
}

// ProjectStructure is the ephemeral output of the Project Analyzer: a
// map of the LaTeX project sufficient to drive compilation and
// conversion.
type ProjectStructure struct {
	MainSourceFile      string
	SupportingFiles     []string
	ClassFiles          []string
	BibliographyFiles   []string
	ReferencedGraphics  []string
	DeclaredPackages    []string
	DocumentClass       string
}
