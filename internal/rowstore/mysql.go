package rowstore

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// buildMySQLDSN renders opts through the driver's own Config, which takes
// care of escaping credentials and database names.
func buildMySQLDSN(opts Options) string {
	port := opts.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = opts.Username
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(port))
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if opts.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
