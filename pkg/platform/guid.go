package platform

import "github.com/google/uuid"

// NewGUID generates the 128-bit identifier spec.md §1 names as a Platform
// Services contract (used by the Visual Studio Generator for project,
// filter and solution-folder GUIDs).
func NewGUID() string {
	return uuid.New().String()
}
