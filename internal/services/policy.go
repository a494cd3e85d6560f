package services

import (
	"fmt"

	"storefront/internal/models"
)

// Principal is the authenticated caller of a service operation.
type Principal struct {
	UserID   string
	Username string
	Role     models.Role
	IsStaff  bool
}

func (p Principal) IsSeller() bool {
	return p.Role == models.RoleSeller
}

func (p Principal) IsCustomer() bool {
	return p.Role == models.RoleCustomer
}

// RequireCustomer fails with ErrForbidden unless p is a customer.
func (p Principal) RequireCustomer(action string) error {
	if !p.IsCustomer() {
		return fmt.Errorf("%w: only customers can %s", ErrForbidden, action)
	}
	return nil
}

// RequireSeller fails with ErrForbidden unless p is a seller.
func (p Principal) RequireSeller(action string) error {
	if !p.IsSeller() {
		return fmt.Errorf("%w: only sellers can %s", ErrForbidden, action)
	}
	return nil
}

// PrincipalOf builds the principal of a loaded user.
func PrincipalOf(u *models.User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role, IsStaff: u.IsStaff}
}
