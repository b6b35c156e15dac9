package entities

import "errors"

var (
	// ErrInvalidReference is returned when a uses string is not owner/repo@ref.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrNoVersionTags is returned when a repository publishes no numeric version tag.
	ErrNoVersionTags = errors.New("no version tags found")
	// ErrRefNotFound is returned when a tag or branch does not exist remotely.
	ErrRefNotFound = errors.New("ref not found")
	// ErrConfigNotFound is returned when no config file exists in the search locations.
	ErrConfigNotFound = errors.New("config file not found in default locations")
	// ErrCommitUnresolved is returned when a hash pin cannot be compared because
	// the commit of the latest version is unknown.
	ErrCommitUnresolved = errors.New("commit of latest version could not be resolved")
)
