package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity service.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	// PatientID is set for patient tokens so bookings can be scoped to the caller.
	PatientID string `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}
