// Package directory is the backend-agnostic citizen/license/contact/
// telegram/ejection data plane. Store is the relational contract;
// concrete backends live in the postgres and sqlite subpackages, and
// memstore provides an in-process implementation used by tests.
package directory

import "time"

// Citizen is a registered account.
type Citizen struct {
	ID           uint32
	Name         string
	Password     string
	PrivPass     string
	Email        string
	Comment      string
	URL          string
	Immigration  int64
	Expiration   int64
	LastLogin    int64
	LastAddress  uint32
	TotalTime    int64
	BotLimit     int32
	Beta         bool
	CAVEnabled   bool
	Trial        bool
	Enabled      bool
	CAVTemplate  string
	Privacy      uint32
}

// License authorizes a world name.
type License struct {
	ID         uint32
	Name       string
	Password   string
	Email      string
	Comment    string
	Creation   int64
	Expiration int64
	LastStart  int64
	LastAddress uint32
	Users      int32
	WorldSize  int32
	Hidden     bool
	Tourists   bool
	Voip       bool
	Plugins    bool
}

// Telegram is an asynchronous stored message.
type Telegram struct {
	ID        uint32
	ToCitID   uint32
	FromCitID uint32
	Timestamp int64
	Message   string
	Delivered bool
}

// Ejection bans an IPv4 address, keyed by its uint32 form.
type Ejection struct {
	Address    uint32
	Expiration int64
	Creation   int64
	Comment    string
}

// Active reports whether the ejection is still in force at t.
func (e Ejection) Active(t time.Time) bool {
	return e.Expiration > t.Unix()
}
