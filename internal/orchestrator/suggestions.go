package orchestrator

import (
	"strconv"
	"strings"

	texerrors "github.com/texforge/texforge/pkg/errors"
)

// maxStderrBytes bounds the captured stderr attached to a
// ConversionFailure, per spec §7 "captured stderr, bounded to <=64KiB".
const maxStderrBytes = 64 * 1024

// boundStderr truncates s to the contractual diagnostic size limit,
// keeping the tail where compiler/converter tools put their final
// error line.
func boundStderr(s string) string {
	if len(s) <= maxStderrBytes {
		return s
	}
	return s[len(s)-maxStderrBytes:]
}

func itoa(n int) string { return strconv.Itoa(n) }

// stderrCauses maps a substring match in captured stderr to a coarse
// failure cause and a human-readable suggestion, per spec §7's
// actionable-suggestions requirement. Checked in order; the first match
// wins.
var stderrCauses = []struct {
	substr     string
	cause      string
	suggestion string
}{
	{"Undefined control sequence", "undefined-control-sequence", "check for a missing \\usepackage or a typo in a macro name"},
	{"! LaTeX Error: File", "missing-file", "verify every \\input, \\include, and \\usepackage target is present in the archive"},
	{"! LaTeX Error: Environment", "undefined-environment", "the document uses an environment from a package that was not loaded or failed to install"},
	{"! Package", "package-error", "a loaded package reported an error; check its options and version"},
	{"Fatal error occurred, no output PDF file produced", "fatal-compiler-error", "review the compiler log for the first reported error and fix it before retrying"},
	{"Unicode character", "unsupported-unicode", "the document contains a Unicode character its font encoding cannot typeset; switch to a Unicode-aware engine or escape the character"},
	{"Dimension too large", "dimension-overflow", "an image or table exceeds TeX's internal size limits; check for a missing scale option"},
	{"TeX capacity exceeded", "capacity-exceeded", "the document exceeds the compiler's internal memory limits; consider splitting it into smaller parts"},
}

// classifyStderr returns the coarse cause label for stderr, or
// "unknown" if no known pattern matched.
func classifyStderr(stderr string) string {
	for _, c := range stderrCauses {
		if strings.Contains(stderr, c.substr) {
			return c.cause
		}
	}
	return "unknown"
}

// suggestionsFor returns the actionable suggestions list attached to a
// ConversionFailure: a kind-level default plus any stderr-pattern match.
func suggestionsFor(kind texerrors.Kind, stderr string) []string {
	var out []string

	switch kind {
	case texerrors.KindUnsafeArchive:
		out = append(out, "re-package the project without symlinks, absolute paths, or parent-directory references")
	case texerrors.KindNoMainSource:
		out = append(out, "include a main.tex, document.tex, or finalmanuscript.tex at the project root, or a single unambiguous .tex file")
	case texerrors.KindConverterFailure:
		out = append(out, "inspect the converter's captured stderr for the first reported error")
	case texerrors.KindTimeoutExceeded:
		out = append(out, "the project exceeded its computed timeout budget; consider reducing included asset sizes or splitting the document")
	}

	for _, c := range stderrCauses {
		if strings.Contains(stderr, c.substr) {
			out = append(out, c.suggestion)
			break
		}
	}

	return out
}
