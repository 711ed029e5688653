package repository

import "errors"

// ErrNotFound covers both records that do not exist and, for scoped mutations
// like message deletes, records the requester does not own. The queries filter
// on ownership, so the two cases are indistinguishable by construction and a
// caller cannot probe for the existence of rows that are not theirs.
var ErrNotFound = errors.New("not found")
