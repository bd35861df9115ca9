package model

// Role represents a user role with associated permissions
type Role struct {
	ID          ID           `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Permission represents a single permission that can be assigned to roles
type Permission struct {
	ID    ID     `json:"id"`
	Code  string `json:"code"` // e.g. "reposiciones.write"
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}
