package model

// Role is the operational role carried in a user's session claims.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleTrainer  Role = "trainer"
	RoleMember   Role = "member"
)

// Actor is the authenticated caller of a user-facing operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// NotificationTokenRequest registers a device token with the external
// push-notification collaborator. The core forwards it opaquely.
type NotificationTokenRequest struct {
	Token      string            `json:"token"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}
