// Package session models the per-connection session state machine and
// its paginated tab snapshots. Polymorphism here is by variant, not
// subclassing: Kind tags which of the embedded variant fields is live.
package session

import "sync"

// Kind tags which variant of the Session union is active on a connection.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlayer
	KindWorld
	KindBot
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindPlayer:
		return "Player"
	case KindWorld:
		return "World"
	case KindBot:
		return "Bot"
	default:
		return "Invalid"
	}
}

// PlayerKind distinguishes a logged-in citizen from an unregistered tourist.
type PlayerKind int

const (
	PlayerTourist PlayerKind = iota
	PlayerCitizen
)

// Session is the per-connection state attached to a registry.Connection.
// Exactly one of the variant-specific fields is meaningful, selected by
// Kind: a tagged union, not a class hierarchy.
type Session struct {
	mu sync.Mutex

	Kind Kind

	// Player variant.
	PlayerKind  PlayerKind
	CitizenID   uint32 // 0 for a tourist
	DisplayName string
	Admin       bool
	Afk         bool

	// World variant.
	WorldName string
	LicenseID uint32

	// Bot variant.
	BotOwnerCitizenID uint32

	Tabs Tabs
}

// New returns a fresh Unknown-kind session.
func New() *Session {
	return &Session{}
}

// BecomePlayer transitions the session to the Player variant. admin is
// derived by the caller (the operator citizen itself, or authentication
// via the operator's priv_pass).
func (s *Session) BecomePlayer(kind PlayerKind, citizenID uint32, displayName string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Kind = KindPlayer
	s.PlayerKind = kind
	s.CitizenID = citizenID
	s.DisplayName = displayName
	s.Admin = admin
}

// BecomeWorld transitions the session to the World variant.
func (s *Session) BecomeWorld(worldName string, licenseID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Kind = KindWorld
	s.WorldName = worldName
	s.LicenseID = licenseID
}

// BecomeBot transitions the session to the Bot variant, owned by the
// citizen whose credentials authenticated it.
func (s *Session) BecomeBot(ownerCitizenID uint32, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Kind = KindBot
	s.BotOwnerCitizenID = ownerCitizenID
	s.DisplayName = displayName
}

// IsCitizen reports whether the session is a logged-in registered account.
func (s *Session) IsCitizen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Kind == KindPlayer && s.PlayerKind == PlayerCitizen
}

// IsAdmin reports whether this session carries universe-operator
// privileges.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Kind == KindPlayer && s.Admin
}

// SetAfk toggles the AFK flag and reports whether it changed.
func (s *Session) SetAfk(afk bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.Afk != afk
	s.Afk = afk
	return changed
}

// IsAfk reports the current AFK flag.
func (s *Session) IsAfk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Afk
}

// DefaultOperatorCitizenID is the citizen id treated as the universe
// operator unless configured otherwise.
const DefaultOperatorCitizenID uint32 = 1

// IsOperator reports whether citizenID is the configured operator id.
func IsOperator(citizenID, operatorCitizenID uint32) bool {
	return citizenID == operatorCitizenID
}
