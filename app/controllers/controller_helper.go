package controllers

import "time"

// FROM_PROTECTED marks a request whose session resolved to a logged-in user.
const FROM_PROTECTED string = "from_protected"

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
