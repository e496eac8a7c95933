package directory

// ContactOptions is a named bitset. The low 6 bits are the persisted
// flags; ApplyChanges reads bits 8-13 of a delta as per-group
// "touch" flags.
type ContactOptions uint32

const (
	FriendRequestAllowed ContactOptions = 1 << 0
	FriendRequestBlocked ContactOptions = 1 << 1
	AllBlocked           ContactOptions = 1 << 2
	TelegramsBlocked     ContactOptions = 1 << 3
	StatusBlocked        ContactOptions = 1 << 4
	ChatBlocked          ContactOptions = 1 << 5
)

// touch bits live eight positions above their corresponding value bit, mirroring
// the "low bit = new value, high bit = touch" pairing.
const (
	touchFriendRequestAllowed ContactOptions = 1 << 8
	touchFriendRequestBlocked ContactOptions = 1 << 9
	touchAllBlocked           ContactOptions = 1 << 10
	touchTelegramsBlocked     ContactOptions = 1 << 11
	touchStatusBlocked        ContactOptions = 1 << 12
	touchChatBlocked          ContactOptions = 1 << 13
)

type bitPair struct {
	value ContactOptions
	touch ContactOptions
}

var contactBitGroups = [...]bitPair{
	{FriendRequestAllowed, touchFriendRequestAllowed},
	{FriendRequestBlocked, touchFriendRequestBlocked},
	{AllBlocked, touchAllBlocked},
	{TelegramsBlocked, touchTelegramsBlocked},
	{StatusBlocked, touchStatusBlocked},
	{ChatBlocked, touchChatBlocked},
}

func (o ContactOptions) Has(bit ContactOptions) bool { return o&bit != 0 }

// ApplyChanges merges delta into o one bit group at a time: for each
// group, if delta's touch bit is unset the original bit is kept; if set,
// o's bit is overwritten with delta's value bit. This is not xor and not
// a plain overwrite; the client's incremental UI updates depend on
// exactly this merge.
func (o ContactOptions) ApplyChanges(delta ContactOptions) ContactOptions {
	result := o
	for _, g := range contactBitGroups {
		if delta&g.touch == 0 {
			continue
		}
		if delta&g.value != 0 {
			result |= g.value
		} else {
			result &^= g.value
		}
	}
	return result
}

// SetDelta builds an ApplyChanges delta that sets every group named in
// bits and leaves all other groups untouched.
func SetDelta(bits ContactOptions) ContactOptions {
	var delta ContactOptions
	for _, g := range contactBitGroups {
		if bits&g.value != 0 {
			delta |= g.value | g.touch
		}
	}
	return delta
}

// ClearDelta builds an ApplyChanges delta that clears every group named
// in bits and leaves all other groups untouched.
func ClearDelta(bits ContactOptions) ContactOptions {
	var delta ContactOptions
	for _, g := range contactBitGroups {
		if bits&g.value != 0 {
			delta |= g.touch
		}
	}
	return delta
}

// Mutual reports whether (a→b) and (b→a) together form an accepted
// friendship: both directions exist with FriendRequestAllowed cleared.
func Mutual(aToB, bToA ContactOptions, aToBExists, bToAExists bool) bool {
	return aToBExists && bToAExists &&
		!aToB.Has(FriendRequestAllowed) && !bToA.Has(FriendRequestAllowed)
}
