package db

import "net/url"

// RedactDSN hides the password of a connection string so it can be logged.
func RedactDSN(dataSourceName string) string {
	u, err := url.Parse(dataSourceName)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}
