package domain

import (
	"errors"
	"time"
)

var ErrCustomerNotFound = errors.New("customer record not found")

// Customer is a read-optimized projection of profile facts used by the
// back-office listing views. Never authoritative; the reconciler coerces it
// toward the profile.
type Customer struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	EnrolledBy string    `json:"enrolled_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CustomerAccount is the projection keyed for the per-account billing view.
// It duplicates the same enrollment facts as Customer under a different read
// shape.
type CustomerAccount struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name,omitempty"`
	EnrollingCode string    `json:"enrolling_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
