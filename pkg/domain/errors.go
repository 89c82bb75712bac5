package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when a user action is not valid in the current macro status.
var ErrInvalidTransition = errors.New("invalid session transition")

// ErrEmptyEssay is returned when an essay contains only whitespace.
var ErrEmptyEssay = errors.New("essay is empty")

// ErrNoSession is returned when an action needs a backend session that was never created.
var ErrNoSession = errors.New("no active workflow session")
