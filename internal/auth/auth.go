// Package auth implements the user table and per-command ACL gate
// described in spec §4.6: password/enabled/permission-set users, a
// configurable default user, and the AUTH/NOAUTH/WRONGPASS/NOPERM
// wire-error semantics.
package auth

import "fedis/internal/protocol"

// Permission is either "all commands" or an explicit uppercase
// command-name allow-list.
type Permission struct {
	AllowAll bool
	Allowed  map[string]struct{}
}

// AllowAllPermission grants every command.
func AllowAllPermission() Permission {
	return Permission{AllowAll: true}
}

// AllowCommandsPermission grants exactly the named uppercase commands.
func AllowCommandsPermission(commands ...string) Permission {
	allowed := make(map[string]struct{}, len(commands))
	for _, c := range commands {
		allowed[c] = struct{}{}
	}
	return Permission{Allowed: allowed}
}

// Allows reports whether cmd (already uppercased) is permitted.
func (p Permission) Allows(cmd string) bool {
	if p.AllowAll {
		return true
	}
	_, ok := p.Allowed[cmd]
	return ok
}

// User is one configured account.
type User struct {
	Name       string
	Password   string // empty means no password required
	Enabled    bool
	Permission Permission
}

// alwaysAllowed commands are permitted before authentication (spec §4.6).
var alwaysAllowed = map[string]struct{}{
	"AUTH":  {},
	"PING":  {},
	"QUIT":  {},
	"HELLO": {},
}

// IsAlwaysAllowed reports whether cmd requires no authentication at all.
func IsAlwaysAllowed(cmd string) bool {
	_, ok := alwaysAllowed[cmd]
	return ok
}

// Table is the configured set of users plus the default-user name.
type Table struct {
	Users       map[string]*User
	DefaultUser string
}

// NewTable builds a Table from users, keyed by name.
func NewTable(defaultUser string, users ...*User) *Table {
	byName := make(map[string]*User, len(users))
	for _, u := range users {
		byName[u.Name] = u
	}
	return &Table{Users: byName, DefaultUser: defaultUser}
}

// RequiresAuth reports whether any user has a non-empty password. If
// none do, the server is unauthenticated and every command is
// permitted without AUTH.
func (t *Table) RequiresAuth() bool {
	for _, u := range t.Users {
		if u.Password != "" {
			return true
		}
	}
	return false
}

// Authenticate resolves user (or the default user when empty) and
// checks password. Returns WRONGPASS on a missing/disabled user or a
// password mismatch, and NewErr("no password configured") when the
// whole server has no password set at all.
func (t *Table) Authenticate(user, password string) (*User, error) {
	if !t.RequiresAuth() {
		return nil, protocol.NewErr("no password configured")
	}

	name := user
	if name == "" {
		name = t.DefaultUser
	}

	u, ok := t.Users[name]
	if !ok || !u.Enabled || u.Password != password {
		return nil, protocol.NewWrongPass("invalid username-password pair or user is disabled.")
	}
	return u, nil
}

// CheckCommand applies the auth gate then the permission gate for cmd
// against the session's authenticated user (nil if unauthenticated).
func (t *Table) CheckCommand(u *User, cmd string) error {
	if IsAlwaysAllowed(cmd) {
		return nil
	}
	if !t.RequiresAuth() {
		return nil
	}
	if u == nil {
		return protocol.NewNoAuth("Authentication required.")
	}
	if !u.Permission.Allows(cmd) {
		return protocol.NewNoPerm("this user has no permissions to run the '" + cmd + "' command")
	}
	return nil
}
