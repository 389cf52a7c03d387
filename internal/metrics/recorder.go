// Package metrics records export observations. Components take a Recorder and
// default to NoopRecorder, so metrics stay optional.
package metrics

import "time"

// Page write outcomes.
const (
	PageWritten = "written"
	PageOrphan  = "orphan"
	PageFailed  = "failed"
)

// Export run outcomes.
const (
	ExportSuccess   = "success"
	ExportPartial   = "partial"
	ExportMalformed = "malformed"
	ExportFailed    = "failed"
)

// Recorder defines observability hooks for export runs.
type Recorder interface {
	IncPage(outcome string)
	IncExport(outcome string)
	ObserveExportDuration(d time.Duration)
	SetNotebookSize(sections, pages int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncPage(string)                      {}
func (NoopRecorder) IncExport(string)                    {}
func (NoopRecorder) ObserveExportDuration(time.Duration) {}
func (NoopRecorder) SetNotebookSize(int, int)            {}
