package doctor

import (
	stderrors "errors"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
)

// messageOf returns the headline of a structured error, or err.Error().
func messageOf(err error) string {
	var sdErr *errors.Error
	if stderrors.As(err, &sdErr) {
		return sdErr.Message
	}
	return err.Error()
}

func suggestionOf(err error, fallback string) string {
	var sdErr *errors.Error
	if stderrors.As(err, &sdErr) && sdErr.Suggestion != "" {
		return sdErr.Suggestion
	}
	return fallback
}
