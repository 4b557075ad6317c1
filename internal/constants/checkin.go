package constants

import "time"

const (
	// DefaultVerifyTimeout bounds a single position request.
	DefaultVerifyTimeout = 15 * time.Second

	// DefaultAnalysisWorkers is the size of the document analysis worker pool.
	DefaultAnalysisWorkers = 4
)
