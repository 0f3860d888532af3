package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")

	// ErrDecode marks a source whose audio track is missing or undecodable.
	ErrDecode = errors.New("decode error")
	// ErrModelLoad marks a speech model that could not be fetched or started.
	ErrModelLoad = errors.New("model load error")
	// ErrBusy marks a request rejected because an exclusive job is running.
	ErrBusy = errors.New("busy")
	// ErrEncoderUnsupported marks a container or codec the encoder cannot produce.
	ErrEncoderUnsupported = errors.New("encoder unsupported")
	// ErrTranscription marks an inference failure that survived the fallback pass.
	ErrTranscription = errors.New("transcription error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage returns the short reason shown to the user for a failed operation.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "another job is already running; wait for it to finish"
	case errors.Is(err, ErrDecode):
		return "could not read an audio track from this video"
	case errors.Is(err, ErrModelLoad):
		return "the speech model could not be loaded; try again"
	case errors.Is(err, ErrTranscription):
		return "transcription failed"
	case errors.Is(err, ErrEncoderUnsupported):
		return "no supported video encoder is available"
	case errors.Is(err, ErrConfiguration):
		return "configuration problem: " + err.Error()
	case errors.Is(err, ErrValidation):
		return "invalid input: " + err.Error()
	default:
		return err.Error()
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
