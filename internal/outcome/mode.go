package outcome

import (
	"fmt"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

// Mode selects what a failed validation returns.
type Mode string

const (
	// ModeFix returns the anonymized text as the fix value.
	ModeFix Mode = "fix"
	// ModeException returns spans and a message, and Outcome.Err reports
	// the failure as an error.
	ModeException Mode = "exception"
	// ModeReport returns spans and a message only.
	ModeReport Mode = "report"
)

// ParseMode validates s. The empty string is ModeFix.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeFix, nil
	case ModeFix, ModeException, ModeReport:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown validation mode %q", config.ErrInvalid, s)
	}
}

func (m Mode) String() string { return string(m) }
