package models

// User is the subset of the marketplace account this subsystem reads.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}
