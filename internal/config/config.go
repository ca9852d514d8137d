// Package config resolves server configuration from CLI flags,
// FEDIS_-prefixed environment variables, and an optional positional
// host:port or redis:// URL, per spec §6/§10.2.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fedis/internal/aol"
	"fedis/internal/auth"
	"fedis/internal/protocol"
)

// Config is the fully resolved set of knobs cmd/fedis-server wires
// into its collaborators.
type Config struct {
	ListenAddr     string
	AOLPath        string
	SnapshotPath   string
	SnapshotSecs   int
	Fsync          aol.SyncPolicy
	Users          string // "name:password:commands,..." entries, ';'-separated
	DefaultUser    string
	MaxConnections int
	MaxBulkBytes   int
	MaxArrayLen    int
	MaxLineBytes   int
	IdleTimeoutSec int
	MetricsAddr    string
	NonRedisMode   bool
	DebugRespIDs   bool

	// AdHocUser is populated when the positional argument is a
	// redis:// URL carrying credentials; it is merged into the users
	// table alongside anything Users describes.
	AdHocUser *auth.User
}

// Default matches the conservative defaults a freshly started server
// applies absent any flag, environment variable, or positional arg.
func Default() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:6379",
		AOLPath:        "fedis.aol",
		SnapshotPath:   "",
		SnapshotSecs:   300,
		Fsync:          aol.EverySec,
		DefaultUser:    "default",
		MaxConnections: 10000,
		MaxBulkBytes:   512 * 1024 * 1024,
		MaxArrayLen:    1024 * 1024,
		MaxLineBytes:   64 * 1024,
		IdleTimeoutSec: 300,
	}
}

// BindFlags registers every CLI flag spec §6's table names (flag names
// are illustrative per the spec; behavior is authoritative) on cmd,
// seeded from env-var fallbacks.
func BindFlags(cmd *cobra.Command) {
	d := Default()
	f := cmd.Flags()

	f.String("listen-addr", envOr("FEDIS_LISTEN_ADDR", d.ListenAddr), "host:port to bind")
	f.String("aol-path", envOr("FEDIS_AOL_PATH", d.AOLPath), "append-only log file path")
	f.String("snapshot-path", envOr("FEDIS_SNAPSHOT_PATH", d.SnapshotPath), "snapshot file path (optional)")
	f.Int("snapshot-interval-sec", envOrInt("FEDIS_SNAPSHOT_INTERVAL_SEC", d.SnapshotSecs), "seconds between background snapshots")
	f.String("fsync", envOr("FEDIS_FSYNC", d.Fsync.String()), "AOL fsync policy: always|everysec|no")
	f.String("users", envOr("FEDIS_USERS", ""), "semicolon-separated name:password:commands entries")
	f.String("default-user", envOr("FEDIS_DEFAULT_USER", d.DefaultUser), "fallback user name when AUTH omits one")
	f.Int("max-connections", envOrInt("FEDIS_MAX_CONNECTIONS", d.MaxConnections), "admission cap, 0 disables")
	f.Int("max-bulk-bytes", d.MaxBulkBytes, "max bulk string payload")
	f.Int("max-array-len", d.MaxArrayLen, "max command array length")
	f.Int("max-line-bytes", d.MaxLineBytes, "max protocol line length")
	f.Int("idle-timeout-sec", envOrInt("FEDIS_IDLE_TIMEOUT_SEC", d.IdleTimeoutSec), "per-connection inactivity cutoff")
	f.String("metrics-addr", envOr("FEDIS_METRICS_ADDR", ""), "optional host:port for the text metrics endpoint")
	f.Bool("non-redis-mode", false, "enable non-redis-client extensions (required for debug response ids)")
	f.Bool("debug-response-ids", envOrBool("FEDIS_DEBUG_RESPONSE_IDS", false), "wrap responses with a RID envelope (only with non-redis-mode)")
}

// FromFlags resolves a Config from cmd's parsed flags plus the
// optional single positional argument.
func FromFlags(cmd *cobra.Command, args []string) (*Config, error) {
	f := cmd.Flags()
	c := Default()

	c.ListenAddr, _ = f.GetString("listen-addr")
	c.AOLPath, _ = f.GetString("aol-path")
	c.SnapshotPath, _ = f.GetString("snapshot-path")
	c.SnapshotSecs, _ = f.GetInt("snapshot-interval-sec")
	c.Users, _ = f.GetString("users")
	c.DefaultUser, _ = f.GetString("default-user")
	c.MaxConnections, _ = f.GetInt("max-connections")
	c.MaxBulkBytes, _ = f.GetInt("max-bulk-bytes")
	c.MaxArrayLen, _ = f.GetInt("max-array-len")
	c.MaxLineBytes, _ = f.GetInt("max-line-bytes")
	c.IdleTimeoutSec, _ = f.GetInt("idle-timeout-sec")
	c.MetricsAddr, _ = f.GetString("metrics-addr")
	c.NonRedisMode, _ = f.GetBool("non-redis-mode")
	c.DebugRespIDs, _ = f.GetBool("debug-response-ids")

	fsyncName, _ := f.GetString("fsync")
	policy, err := parseFsync(fsyncName)
	if err != nil {
		return nil, err
	}
	c.Fsync = policy

	if len(args) > 0 {
		if err := c.applyPositional(args[0]); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Config) applyPositional(arg string) error {
	if !strings.Contains(arg, "://") {
		c.ListenAddr = arg
		return nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return fmt.Errorf("invalid redis:// URL: %w", err)
	}
	if u.Scheme != "redis" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if u.Host != "" {
		c.ListenAddr = u.Host
	}

	if u.User != nil {
		name := u.User.Username()
		if name == "" {
			name = c.DefaultUser
		}
		pass, _ := u.User.Password()
		c.AdHocUser = &auth.User{
			Name:       name,
			Password:   pass,
			Enabled:    true,
			Permission: auth.AllowAllPermission(),
		}
	}

	if path := strings.TrimPrefix(u.Path, "/"); path != "" && path != "0" {
		return fmt.Errorf("SELECT outside index 0 is not supported in the URL path: %q", path)
	}

	return nil
}

// Limits builds the protocol.Limits the parser enforces.
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		MaxLineBytes: c.MaxLineBytes,
		MaxBulkBytes: c.MaxBulkBytes,
		MaxArrayLen:  c.MaxArrayLen,
	}
}

// BuildAuthTable assembles the auth.Table from the Users flag plus any
// ad hoc URL-derived user.
func (c *Config) BuildAuthTable() (*auth.Table, error) {
	var users []*auth.User
	if c.Users != "" {
		for _, entry := range strings.Split(c.Users, ";") {
			u, err := parseUserEntry(entry)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	if c.AdHocUser != nil {
		users = append(users, c.AdHocUser)
	}
	return auth.NewTable(c.DefaultUser, users...), nil
}

// parseUserEntry parses one "name:password:cmd1,cmd2" (or
// "name:password:*" for all-commands) users-table entry.
func parseUserEntry(entry string) (*auth.User, error) {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed user entry %q, want name:password:commands", entry)
	}
	name, password, cmds := parts[0], parts[1], parts[2]
	if name == "" {
		return nil, fmt.Errorf("user entry %q has an empty name", entry)
	}

	perm := auth.AllowAllPermission()
	if cmds != "*" && cmds != "" {
		perm = auth.AllowCommandsPermission(strings.Split(strings.ToUpper(cmds), ",")...)
	}

	return &auth.User{Name: name, Password: password, Enabled: true, Permission: perm}, nil
}

func parseFsync(name string) (aol.SyncPolicy, error) {
	switch strings.ToLower(name) {
	case "always":
		return aol.Always, nil
	case "everysec", "":
		return aol.EverySec, nil
	case "no":
		return aol.No, nil
	default:
		return 0, fmt.Errorf("unknown fsync policy %q, want always|everysec|no", name)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
