package domain

// Role is supplied by the external identity provider for every request.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleStaff    Role = "staff"
)

// Valid reports whether the role is one the service understands.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSupplier, RoleStaff:
		return true
	}
	return false
}

// Requester is the per-request authentication context passed into every service call.
type Requester struct {
	ID   string
	Role Role
}

// IsStaff reports whether the requester carries the elevated support role.
func (r Requester) IsStaff() bool {
	return r.Role == RoleStaff
}

// SenderRole maps the requester to the author role recorded on messages.
func (r Requester) SenderRole() MessageSender {
	if r.IsStaff() {
		return SenderStaff
	}
	return SenderOwner
}
