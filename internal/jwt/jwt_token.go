package jwt

import (
	"fmt"
	"time"

	"estate-inquiries-backend/internal/model"

	"github.com/golang-jwt/jwt"
)

func appendRoleChar(token string, role Role) string {
	switch role {
	case RoleSession:
		return token + "1"
	}
	return token
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleSession:
		return "1"
	}
	return ""
}

func CreateToken(session Session, role Role, validUntil int64) (string, error) {
	secret, ok := RoleSecrets[role]
	if !ok {
		return "", fmt.Errorf("invalid role specified")
	}

	if validUntil == 0 {
		now := time.Now()
		validUntil = now.Add(time.Minute * 15).Unix()
	}

	claims := jwt.MapClaims{
		"id":       session.UserID,
		"role":     string(session.Role),
		"agencyId": session.AgencyID,
		"email":    session.Email,
		"exp":      validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

// Parse token (access) with role char validation
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1] // Remove role char

	secret, ok := RoleSecrets[role]
	if !ok {
		return nil, fmt.Errorf("invalid role specified")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// ParseSession decodes and validates an access token into the Session the
// inquiry core consumes.
func ParseSession(tokenString string) (Session, error) {
	claims, err := ParseToken(tokenString, RoleSession)
	if err != nil {
		return Session{}, err
	}

	userID, _ := claims["id"].(string)
	roleStr, _ := claims["role"].(string)
	agencyID, _ := claims["agencyId"].(string)
	email, _ := claims["email"].(string)

	role, ok := model.ParseRole(roleStr)
	if !ok {
		return Session{}, fmt.Errorf("token carries unknown role %q", roleStr)
	}
	if userID == "" {
		return Session{}, fmt.Errorf("token missing user id")
	}

	return Session{
		UserID:   userID,
		Role:     role,
		AgencyID: agencyID,
		Email:    email,
	}, nil
}
