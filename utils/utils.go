package utils

import (
	"net/url"
	"os"
)

// LookupEnv is a convenience function for handling env vars
func LookupEnv(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultValue
}

// RedactURL masks the password in a credentialed URL so connection strings
// can be logged safely. Unparseable input is returned unchanged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, ok := u.User.Password(); ok {
		return u.Scheme + "://" + u.User.Username() + ":****@" + u.Host + u.Path
	}
	return rawURL
}
