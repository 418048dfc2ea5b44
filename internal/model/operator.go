package model

// Operator is the single dashboard account configured for the service.
type Operator struct {
	Login        string `json:"login"`
	PasswordHash []byte `json:"-"`
}
