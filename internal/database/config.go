package database

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
)

// ConnectConfig is everything needed to open one connection. The first six
// fields arrive from the client's connect request; ConnectTimeout comes
// from server configuration.
type ConnectConfig struct {
	Driver   Dialect `json:"driver"`
	Host     string  `json:"host"`
	Port     int     `json:"port"`
	User     string  `json:"user"`
	Password string  `json:"password"`
	Database string  `json:"database"`

	ConnectTimeout time.Duration `json:"-"`
}

const defaultConnectTimeout = 10 * time.Second

// Normalize fills defaults (driver, port, timeout) and validates the rest.
func (c *ConnectConfig) Normalize(defaultDriver Dialect) error {
	c.Driver = Dialect(strings.ToLower(strings.TrimSpace(string(c.Driver))))
	if c.Driver == "" {
		c.Driver = defaultDriver
	}
	if c.Driver == "" {
		c.Driver = DialectMySQL
	}

	switch c.Driver {
	case DialectMySQL:
		if c.Port == 0 {
			c.Port = 3306
		}
	case DialectPostgres:
		if c.Port == 0 {
			c.Port = 5432
		}
	default:
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported driver %q", c.Driver))
	}

	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		return errs.New(errs.ErrKindInvalidInput, "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid port %d", c.Port))
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return nil
}

// Addr is host:port.
func (c *ConnectConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
