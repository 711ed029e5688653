package ws

// Payload-carried user ids are untrusted input: every mutating action must
// cross-check them against the connection's authenticated identity before it
// touches the store. These predicates are pure so they can be reasoned about
// and tested in isolation.

// CanSend reports whether the claimed sender is the session's own user.
func CanSend(authenticatedUserID, claimedUserID string) bool {
	return claimedUserID != "" && claimedUserID == authenticatedUserID
}

// CanDelete applies the same identity check for delete requests.
func CanDelete(authenticatedUserID, claimedUserID string) bool {
	return CanSend(authenticatedUserID, claimedUserID)
}
