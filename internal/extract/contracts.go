package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/common"
)

// TextExtractor turns an acquired image into text.
type TextExtractor interface {
	Extract(ctx context.Context, ref acquire.ImageRef) (Result, error)
}

type Result struct {
	Text       string
	Language   string
	Engine     string
	Confidence float32
	Duration   time.Duration
	Warnings   []string
	Cached     bool
}

// ExtractionError is the only error Extract returns. Reason is safe to show to
// the user; Cause is kept for logs and errors.Is.
type ExtractionError struct {
	Reason string
	Stage  string // create | load_language | initialize | recognize | engine
	Cause  error
}

func newExtractionError(stage string, cause error) *ExtractionError {
	return &ExtractionError{Reason: constants.ExtractionFailedMessage, Stage: stage, Cause: cause}
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func (e *ExtractionError) Is(target error) bool { return target == common.ErrExtractionFailed }
