package pipeline

import (
	"context"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
)

// DocumentSource fetches raw document bytes by storage path. Not-found must
// surface as common.ErrNotFound, distinct from transport errors.
type DocumentSource interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Scanner is the antivirus hook. A positive detection returns
// common.ErrMalicious; an unreachable scanner should be handled by the
// implementation (log and pass), not surfaced.
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

// NoopScanner is the degraded default when no scanner is configured.
type NoopScanner struct{}

func (NoopScanner) Scan(context.Context, []byte) error { return nil }

// ArtifactSink stores generated artifacts (exports, packs) and returns the
// storage path.
type ArtifactSink interface {
	Put(ctx context.Context, userID, name, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, paths []string) error
}

// Dispatcher enqueues follow-up jobs for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, fileID string, kind constants.JobKind, meta map[string]any) (string, error)
}
