package postprocess

import "context"

// ProcessContext carries the ambient context.Context and job identity
// a Process call needs for its asset-conversion sub-step, without
// forcing every other transformation (which are pure DOM rewrites) to
// take one.
type ProcessContext struct {
	Ctx   context.Context
	JobID string
}
