package drapto

import (
	"fmt"
	"time"

	draptolib "github.com/five82/drapto"
)

// reporter adapts the Drapto Reporter interface to the ProgressUpdate
// callback. Batch and crop events carry nothing the post-pass reports, so
// they only surface as messages.
type reporter struct {
	callback func(ProgressUpdate)
}

func newReporter(callback func(ProgressUpdate)) *reporter {
	return &reporter{callback: callback}
}

func (r *reporter) emit(update ProgressUpdate) {
	update.Timestamp = time.Now()
	r.callback(update)
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.emit(ProgressUpdate{Type: EventTypeHardware, Message: fmt.Sprint(s.Hostname)})
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.emit(ProgressUpdate{
		Type:    EventTypeInitialization,
		Message: fmt.Sprintf("%v (%v, %v)", s.InputFile, s.Resolution, s.Duration),
	})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	var eta time.Duration
	if s.ETA != nil {
		eta = *s.ETA
	}
	r.emit(ProgressUpdate{
		Type:    EventTypeStageProgress,
		Percent: float64(s.Percent),
		Stage:   s.Stage,
		Message: s.Message,
		ETA:     eta,
	})
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.emit(ProgressUpdate{Type: EventTypeStageProgress, Stage: "crop", Message: fmt.Sprint(s.Message)})
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.emit(ProgressUpdate{
		Type:    EventTypeEncodingConfig,
		Message: fmt.Sprintf("%v preset %v quality %v", s.Encoder, s.Preset, s.Quality),
	})
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.emit(ProgressUpdate{
		Type:    EventTypeEncodingStarted,
		Stage:   "encoding",
		Message: fmt.Sprintf("%d frames", totalFrames),
	})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(ProgressUpdate{
		Type:    EventTypeEncodingProgress,
		Percent: float64(s.Percent),
		Stage:   "encoding",
		Speed:   float64(s.Speed),
		FPS:     float64(s.FPS),
		ETA:     s.ETA,
		Bitrate: s.Bitrate,
	})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	msg := "validation passed"
	if !s.Passed {
		msg = "validation failed"
	}
	r.emit(ProgressUpdate{Type: EventTypeValidation, Stage: "validation", Message: msg})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.emit(ProgressUpdate{
		Type:       EventTypeEncodingComplete,
		Percent:    100,
		Stage:      "complete",
		Speed:      float64(s.AverageSpeed),
		OutputPath: fmt.Sprint(s.OutputPath),
	})
}

func (r *reporter) Warning(message string) {
	r.emit(ProgressUpdate{Type: EventTypeWarning, Message: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.emit(ProgressUpdate{Type: EventTypeError, Message: fmt.Sprintf("%v: %v", e.Title, e.Message)})
}

func (r *reporter) OperationComplete(message string) {
	r.emit(ProgressUpdate{Type: EventTypeOperationComplete, Message: message})
}

func (r *reporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.emit(ProgressUpdate{Type: EventTypeStageProgress, Stage: "batch", Message: fmt.Sprintf("%v files", s.TotalFiles)})
}

func (r *reporter) FileProgress(s draptolib.FileProgressContext) {
	r.emit(ProgressUpdate{Type: EventTypeStageProgress, Stage: "batch", Message: fmt.Sprintf("file %v/%v", s.CurrentFile, s.TotalFiles)})
}

func (r *reporter) BatchComplete(s draptolib.BatchSummary) {
	r.emit(ProgressUpdate{Type: EventTypeOperationComplete, Message: fmt.Sprintf("%v/%v files", s.SuccessfulCount, s.TotalFiles)})
}

var _ draptolib.Reporter = (*reporter)(nil)
