package errors

import "errors"

var (
	ErrMalformedJobInput   = errors.New("malformed job input")
	ErrUnknownArtifact     = errors.New("unknown input artifact")
	ErrMissingArtifactFile = errors.New("missing artifact file")
	ErrMissingJSONKey      = errors.New("missing json key")
	ErrFetchFailed         = errors.New("failed to fetch artifact object")
	ErrEntryNotFound       = errors.New("archive entry not found")
	ErrNoCredentials       = errors.New("assume role returned no credentials")
)
