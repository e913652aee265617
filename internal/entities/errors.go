package entities

import (
	"errors"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

var (
	// ErrConfig marks unknown aliases and unsupported selector shapes.
	// It is the same sentinel as config.ErrInvalid so callers can test
	// either one.
	ErrConfig = config.ErrInvalid

	// ErrInvalidTOML indicates a group table file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)
