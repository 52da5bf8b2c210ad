package directory

import "errors"

// ErrNotFound is returned when no visible record matches a lookup.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned by Save when another record already
// holds the username. User-correctable; never retried automatically.
var ErrDuplicateUsername = errors.New("this username is already in use")

// ErrDuplicateEmail is returned by Save when another record already
// holds the email address.
var ErrDuplicateEmail = errors.New("this email address is already in use")

// ErrIndexNotProvisioned is returned by the store when a queried view
// does not exist. Read paths treat it as an empty result, never as a
// failure.
var ErrIndexNotProvisioned = errors.New("view index not provisioned")
