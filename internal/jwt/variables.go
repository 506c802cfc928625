package jwt

import (
	"estate-inquiries-backend/internal/env"
)

var SESSION_SECRET string

const (
	RoleSession Role = iota
)

var RoleSecrets = map[Role]string{
	RoleSession: SESSION_SECRET,
}

func init() {
	SESSION_SECRET = env.Get(env.SessionSecretKey)
	RoleSecrets[RoleSession] = SESSION_SECRET
}
