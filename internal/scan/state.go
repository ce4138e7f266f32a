// Package scan holds the displayed scan state and the transition function
// that drives it. Rendering layers subscribe to a Store and redraw on change.
package scan

import (
	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
)

// State is what the screen shows.
type State struct {
	Image  acquire.ImageRef
	Status constants.ExtractionStatus
	// Text is the displayed string: the progress message, the recognized text or the failure message.
	Text string
	// RunID identifies the extraction whose result may still be applied. Results for any other run are stale.
	RunID string
	// Notice is a one-shot alert such as a permission denial or an export failure.
	Notice string
	// Version increases on every applied transition.
	Version uint64
}

// Initial is the state before anything was scanned.
func Initial() State {
	return State{Status: constants.StatusIdle}
}

// Extracting reports whether a run is in flight.
func (s State) Extracting() bool { return s.Status == constants.StatusExtracting }

// Event is anything that may change State.
type Event interface {
	isEvent()
}

// ImageAcquired replaces the displayed image.
type ImageAcquired struct {
	Image acquire.ImageRef
}

// ExtractionStarted opens a new run and supersedes any previous one.
type ExtractionStarted struct {
	RunID string
}

type ExtractionSucceeded struct {
	RunID string
	Text  string
}

type ExtractionFailed struct {
	RunID  string
	Reason string
}

type NoticeRaised struct {
	Message string
}

type NoticeCleared struct{}

func (ImageAcquired) isEvent()       {}
func (ExtractionStarted) isEvent()   {}
func (ExtractionSucceeded) isEvent() {}
func (ExtractionFailed) isEvent()    {}
func (NoticeRaised) isEvent()        {}
func (NoticeCleared) isEvent()       {}

// Reduce applies e to s. The second result is false when e was ignored,
// which happens for results of a run that is no longer current.
func Reduce(s State, e Event) (State, bool) {
	switch ev := e.(type) {
	case ImageAcquired:
		s.Image = ev.Image
	case ExtractionStarted:
		if ev.RunID == "" {
			return s, false
		}
		s.RunID = ev.RunID
		s.Status = constants.StatusExtracting
		s.Text = constants.ExtractingMessage
	case ExtractionSucceeded:
		if !s.current(ev.RunID) {
			return s, false
		}
		s.Status = constants.StatusSucceeded
		s.Text = ev.Text
	case ExtractionFailed:
		if !s.current(ev.RunID) {
			return s, false
		}
		s.Status = constants.StatusFailed
		s.Text = ev.Reason
		if s.Text == "" {
			s.Text = constants.ExtractionFailedMessage
		}
	case NoticeRaised:
		s.Notice = ev.Message
	case NoticeCleared:
		if s.Notice == "" {
			return s, false
		}
		s.Notice = ""
	default:
		return s, false
	}
	s.Version++
	return s, true
}

func (s State) current(runID string) bool {
	return runID != "" && runID == s.RunID && s.Status == constants.StatusExtracting
}
