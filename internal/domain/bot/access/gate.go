// Package access decides which commands a user may run
package access

import (
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// DenyReason explains a denied decision
type DenyReason int

const (
	ReasonNone DenyReason = iota
	// ReasonUnauthorized: the sender is not on any list
	ReasonUnauthorized
	// ReasonAdminOnly: an allowed user tried a sudo command
	ReasonAdminOnly
	// ReasonUnknownCommand: the command is not in the policy table
	ReasonUnknownCommand
)

// Fixed replies for denied commands. They never mention who is on the list.
const (
	MessageUnauthorized = "🚫 Sorry, you are not authorized to use this bot."
	MessageAdminOnly    = "🚫 This command is available to admins only."
	MessageUnknown      = "🤔 Unknown command. Use /help to see what I can do."
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Message returns the reply shown for a denied decision
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonAdminOnly:
		return MessageAdminOnly
	case ReasonUnknownCommand:
		return MessageUnknown
	default:
		return MessageUnauthorized
	}
}

var allow = Decision{Allowed: true}

// Authorize applies the permission policy to a tier and a command
func Authorize(tier entities.Tier, cmd entities.Command) Decision {
	switch tier {
	case entities.TierSudo:
		switch cmd {
		case entities.CommandStart, entities.CommandHelp, entities.CommandDownload, entities.CommandCookieDownload,
			entities.CommandAddUser, entities.CommandRemoveUser, entities.CommandListUsers,
			entities.CommandSetLogChannel, entities.CommandSetCookie, entities.CommandCancel:
			return allow
		default:
			return Decision{Reason: ReasonUnknownCommand}
		}
	case entities.TierAllowed:
		switch cmd {
		case entities.CommandStart, entities.CommandHelp, entities.CommandDownload, entities.CommandCookieDownload:
			return allow
		case entities.CommandAddUser, entities.CommandRemoveUser, entities.CommandListUsers,
			entities.CommandSetLogChannel, entities.CommandSetCookie, entities.CommandCancel:
			return Decision{Reason: ReasonAdminOnly}
		default:
			return Decision{Reason: ReasonUnknownCommand}
		}
	default:
		return Decision{Reason: ReasonUnauthorized}
	}
}

// TierSource resolves the tier of a user
type TierSource interface {
	Tier(id int64) entities.Tier
}

// Gate checks commands against the current permission list
type Gate struct {
	users TierSource
}

// NewGate creates a gate backed by the user store
func NewGate(users TierSource) *Gate {
	return &Gate{users: users}
}

// Tier returns the tier of a user
func (g *Gate) Tier(userID int64) entities.Tier {
	return g.users.Tier(userID)
}

// Check returns a PermissionError carrying the reply text when cmd is denied
func (g *Gate) Check(userID int64, cmd entities.Command) error {
	d := Authorize(g.users.Tier(userID), cmd)
	if d.Allowed {
		return nil
	}
	return pkgerrors.NewPermissionError(d.Message())
}
