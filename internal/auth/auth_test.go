package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fedis/internal/protocol"
)

func TestUnauthenticatedServerAllowsEverything(t *testing.T) {
	table := NewTable("default", &User{Name: "default", Password: "", Enabled: true, Permission: AllowAllPermission()})
	require.False(t, table.RequiresAuth())
	require.NoError(t, table.CheckCommand(nil, "GET"))

	_, err := table.Authenticate("", "whatever")
	require.Error(t, err)
	we, ok := err.(*protocol.WireError)
	require.True(t, ok)
	require.Equal(t, protocol.KindErr, we.Kind)
}

func TestAuthenticateDefaultUser(t *testing.T) {
	table := NewTable("default", &User{Name: "default", Password: "secret", Enabled: true, Permission: AllowAllPermission()})

	u, err := table.Authenticate("", "secret")
	require.NoError(t, err)
	require.Equal(t, "default", u.Name)

	_, err = table.Authenticate("", "wrong")
	require.Error(t, err)
	we := err.(*protocol.WireError)
	require.Equal(t, protocol.KindWrongPass, we.Kind)
}

func TestAuthenticateDisabledUser(t *testing.T) {
	table := NewTable("default", &User{Name: "default", Password: "secret", Enabled: false, Permission: AllowAllPermission()})
	_, err := table.Authenticate("default", "secret")
	require.Error(t, err)
	require.Equal(t, protocol.KindWrongPass, err.(*protocol.WireError).Kind)
}

func TestNoAuthBeforeAuthentication(t *testing.T) {
	table := NewTable("default", &User{Name: "default", Password: "secret", Enabled: true, Permission: AllowAllPermission()})

	require.NoError(t, table.CheckCommand(nil, "PING"))
	require.NoError(t, table.CheckCommand(nil, "AUTH"))

	err := table.CheckCommand(nil, "GET")
	require.Error(t, err)
	require.Equal(t, protocol.KindNoAuth, err.(*protocol.WireError).Kind)
}

func TestNoPermOutsideAllowList(t *testing.T) {
	table := NewTable("default", &User{
		Name: "limited", Password: "secret", Enabled: true,
		Permission: AllowCommandsPermission("GET", "PING"),
	})
	u, err := table.Authenticate("limited", "secret")
	require.NoError(t, err)

	require.NoError(t, table.CheckCommand(u, "GET"))

	err = table.CheckCommand(u, "SET")
	require.Error(t, err)
	require.Equal(t, protocol.KindNoPerm, err.(*protocol.WireError).Kind)
}
