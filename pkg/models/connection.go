package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection represents a registered external PostgreSQL instance.
// The password is encrypted at rest by the service layer and never
// serialized on read paths.
type Connection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	UseTLS    bool      `json:"use_tls"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPort is the PostgreSQL default, applied when a record omits one.
const DefaultPort = 5432

// ConnectionUpdate carries a partial update. Nil fields are left untouched.
type ConnectionUpdate struct {
	Name     *string `json:"name,omitempty"`
	Host     *string `json:"host,omitempty"`
	Port     *int    `json:"port,omitempty"`
	Database *string `json:"database,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	UseTLS   *bool   `json:"use_tls,omitempty"`
}

// TouchesCredentials reports whether applying the update changes anything
// a live pool depends on. Such updates must invalidate the stale pool.
func (u *ConnectionUpdate) TouchesCredentials() bool {
	return u.Host != nil || u.Port != nil || u.Database != nil ||
		u.Username != nil || u.Password != nil || u.UseTLS != nil
}

// Apply merges the update onto an existing record.
func (u *ConnectionUpdate) Apply(c *Connection) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Host != nil {
		c.Host = *u.Host
	}
	if u.Port != nil {
		c.Port = *u.Port
	}
	if u.Database != nil {
		c.Database = *u.Database
	}
	if u.Username != nil {
		c.Username = *u.Username
	}
	if u.Password != nil {
		c.Password = *u.Password
	}
	if u.UseTLS != nil {
		c.UseTLS = *u.UseTLS
	}
}
