// Package accounts talks to the VPN account service: user records, key provisioning,
// server health and the localized option lists shown in the bot.
package accounts

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned when the service has no record for the requested resource and
// absence is not a valid answer for the operation.
var ErrNotFound = errors.New("accounts: not found")

// Key is one provisioned access key of an account.
type Key struct {
	ID     int64 `json:"id"`
	Server int64 `json:"server"`
}

// Account is the service-side user record.
type Account struct {
	Username string `json:"username"`
	Banned   bool   `json:"banned"`
	Keys     []Key  `json:"outline_key"`
}

// KeyGrant is the result of a provisioning request. Keys is empty when the service had
// no capacity to hand out.
type KeyGrant struct {
	Keys       []string
	ConfigLink string
}

// ServerInfo reports the health of the server behind a key.
type ServerInfo struct {
	Blocked bool `json:"is_blocked"`
	Active  bool `json:"active"`
}

// Option is one localized entry of a selection list.
type Option struct {
	ID    int64
	Label string
}

// HTTPError reports an unexpected status from the account service.
type HTTPError struct {
	URL     string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("accounts: %s returned %d: %s", e.URL, e.Status, e.Message)
}

// Code exposes the status to log summaries.
func (e *HTTPError) Code() string {
	return "HTTP_" + strconv.Itoa(e.Status)
}
