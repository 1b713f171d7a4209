package postgres

import (
	"fmt"
	"net/url"
)

// Config holds the fields needed to reach one database on an external
// PostgreSQL server.
type Config struct {
	Host                  string
	Port                  int
	Database              string
	User                  string
	Password              string
	UseTLS                bool
	ConnectTimeoutSeconds int
}

// BuildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
func BuildConnectionString(cfg Config) string {
	sslMode := "disable"
	if cfg.UseTLS {
		sslMode = "require"
	}

	connStr := fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
	if cfg.ConnectTimeoutSeconds > 0 {
		connStr += fmt.Sprintf("&connect_timeout=%d", cfg.ConnectTimeoutSeconds)
	}
	return connStr
}
