package domain

import "strings"

// Session identifies the operator performing mutations. It is passed
// explicitly to the components that attribute changes.
type Session struct {
	UserID   string
	UserName string
}

// Anonymous reports whether the session carries no user id.
func (s Session) Anonymous() bool {
	return strings.TrimSpace(s.UserID) == ""
}

// Attribution field names written into mutation payloads.
const (
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
)
