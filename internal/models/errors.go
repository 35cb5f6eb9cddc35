package models

import "errors"

// Not-found conditions propagated to callers. Stores and services return
// these (optionally wrapped) so the query surface can translate them into 404s.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrUserNotFound  = errors.New("user not found")
)
