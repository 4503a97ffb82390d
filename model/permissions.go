package model

// Permissions is the platform-neutral set of member/chat send rights.
type Permissions struct {
	SendMessages   bool
	SendMedia      bool
	SendOther      bool
	AddWebPreviews bool
	ChangeInfo     bool
	InviteUsers    bool
	PinMessages    bool
}

var (
	// MutedPermissions is applied to a muted member.
	MutedPermissions = Permissions{}

	// ClosedPermissions is the chat default while a group is closed.
	ClosedPermissions = Permissions{}

	// OpenPermissions restores the chat defaults.
	OpenPermissions = Permissions{
		SendMessages:   true,
		SendMedia:      true,
		SendOther:      true,
		AddWebPreviews: true,
		InviteUsers:    true,
	}
)
