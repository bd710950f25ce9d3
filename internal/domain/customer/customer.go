// Package customer provides read access to users and their addresses.
package customer

import (
	"context"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrUserNotFound is returned when a user does not exist.
var ErrUserNotFound = apperr.NotFound("User not found")

// AddressType tells what an address may be used for.
type AddressType string

const (
	AddressShipping AddressType = "shipping"
	AddressBilling  AddressType = "billing"
	AddressBoth     AddressType = "both"
)

// Ships reports whether goods may be delivered to an address of this type.
func (t AddressType) Ships() bool {
	return t == AddressShipping || t == AddressBoth
}

// Valid reports whether t is a known address type.
func (t AddressType) Valid() bool {
	return t.Ships() || t == AddressBilling
}

// User is a registered customer.
type User struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
}

// Address is a postal address owned by a user.
type Address struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Street  string
	City    string
	ZipCode string
	Country string
	Type    AddressType
}

// Directory looks up users.
type Directory interface {
	// User returns the user with the given ID or ErrUserNotFound.
	User(ctx context.Context, id uuid.UUID) (*User, error)
}
