package rowstore

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
)

// buildPostgresDSN renders opts as a postgres:// URL; lib/pq accepts both
// URLs and key=value strings, and the URL form escapes credentials.
func buildPostgresDSN(opts Options) string {
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(opts.Host, strconv.Itoa(port)),
		Path:     "/" + opts.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if opts.Username != "" {
		u.User = url.UserPassword(opts.Username, opts.Password)
	}
	return u.String()
}
