package directory

import "context"

// Store is the relational contract of the directory. Every operation
// returns a three-valued outcome: a nil error with a non-nil result
// means a row was found; a nil error with a nil/zero result means no
// such row; a non-nil error means a storage failure.
// Handlers must not confuse the last two — that distinction picks the
// ReasonCode sent back to the client.
type Store interface {
	CitizenStore
	LicenseStore
	ContactStore
	TelegramStore
	EjectionStore
}

// CitizenStore manages the Citizen directory.
type CitizenStore interface {
	CitizenByNumber(ctx context.Context, id uint32) (*Citizen, error)
	// CitizenByName performs a case-insensitive lookup but returns the
	// stored (case-preserving) name.
	CitizenByName(ctx context.Context, name string) (*Citizen, error)
	CitizenAdd(ctx context.Context, c *Citizen) error
	// CitizenChange updates all writable fields keyed by c.ID.
	CitizenChange(ctx context.Context, c *Citizen) error
	CitizenCount(ctx context.Context) (int64, error)
	CitizenPrevByNumber(ctx context.Context, id uint32) (*Citizen, error)
	CitizenNextByNumber(ctx context.Context, id uint32) (*Citizen, error)
}

// LicenseStore manages world licenses.
type LicenseStore interface {
	LicenseByName(ctx context.Context, name string) (*License, error)
	// LicensePrev returns the greatest license name lexically less than name.
	LicensePrev(ctx context.Context, name string) (*License, error)
	// LicenseNext returns the least license name lexically greater than name.
	LicenseNext(ctx context.Context, name string) (*License, error)
	LicenseAdd(ctx context.Context, l *License) error
	LicenseChange(ctx context.Context, l *License) error
}

// ContactStore manages directed contact edges.
type ContactStore interface {
	ContactGet(ctx context.Context, owner, other uint32) (ContactOptions, bool, error)
	ContactSet(ctx context.Context, owner, other uint32, options ContactOptions) error
	ContactDelete(ctx context.Context, owner, other uint32) error
	// ContactBlocked reports whether target has ALL_BLOCKED set toward
	// source (source is trying to act on/toward target).
	ContactBlocked(ctx context.Context, source, target uint32) (bool, error)
	// ContactTelegramsAllowed reports whether owner allows telegrams from
	// other (false if owner's edge toward other has TELEGRAMS_BLOCKED).
	ContactTelegramsAllowed(ctx context.Context, owner, other uint32) (bool, error)
	ContactGetAll(ctx context.Context, owner uint32) (map[uint32]ContactOptions, error)
}

// TelegramStore manages stored messages.
type TelegramStore interface {
	TelegramAdd(ctx context.Context, to, from uint32, ts int64, message string) (uint32, error)
	// TelegramGetUndelivered returns the citizen's undelivered telegrams,
	// oldest first.
	TelegramGetUndelivered(ctx context.Context, citID uint32) ([]Telegram, error)
	TelegramMarkDelivered(ctx context.Context, id uint32) error
	TelegramCountUndelivered(ctx context.Context, citID uint32) (int64, error)
}

// EjectionStore manages IP ejections.
type EjectionStore interface {
	EjectionSet(ctx context.Context, address uint32, expiration, creation int64, comment string) error
	EjectionByAddress(ctx context.Context, address uint32) (*Ejection, error)
	EjectionPrev(ctx context.Context, address uint32) (*Ejection, error)
	EjectionNext(ctx context.Context, address uint32) (*Ejection, error)
	EjectionDelete(ctx context.Context, address uint32) error
	// EjectionLookup returns the active ejection for address, or nil if
	// none is in force (expiration <= now).
	EjectionLookup(ctx context.Context, address uint32, now int64) (*Ejection, error)
}
