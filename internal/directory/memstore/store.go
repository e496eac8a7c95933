// Package memstore is an in-process directory.Store used by tests. It
// is not a production backend (those live in the postgres and sqlite
// subpackages) but gives the handler test suite a fast, dependency-free
// double that still honors the Store contract's found/absent/error
// trichotomy.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aworlds/universe/internal/directory"
)

type contactKey struct {
	owner, other uint32
}

// Store is a mutex-protected in-memory directory.Store.
type Store struct {
	mu sync.Mutex

	citizensByID   map[uint32]directory.Citizen
	licensesByName map[string]directory.License
	contacts       map[contactKey]directory.ContactOptions
	telegrams      map[uint32]directory.Telegram
	ejections      map[uint32]directory.Ejection

	nextCitizenID   uint32
	nextLicenseID   uint32
	nextTelegramID  uint32
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		citizensByID:   make(map[uint32]directory.Citizen),
		licensesByName: make(map[string]directory.License),
		contacts:       make(map[contactKey]directory.ContactOptions),
		telegrams:      make(map[uint32]directory.Telegram),
		ejections:      make(map[uint32]directory.Ejection),
	}
}

// --- Citizens ---

func (s *Store) CitizenByNumber(_ context.Context, id uint32) (*directory.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.citizensByID[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) CitizenByName(_ context.Context, name string) (*directory.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(name)
	for _, c := range s.citizensByID {
		if strings.ToLower(c.Name) == lower {
			cc := c
			return &cc, nil
		}
	}
	return nil, nil
}

func (s *Store) CitizenAdd(_ context.Context, c *directory.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(c.Name)
	for _, existing := range s.citizensByID {
		if strings.ToLower(existing.Name) == lower {
			return fmt.Errorf("citizen name %q already used", c.Name)
		}
	}
	s.nextCitizenID++
	if c.ID == 0 {
		c.ID = s.nextCitizenID
	} else if c.ID > s.nextCitizenID {
		s.nextCitizenID = c.ID
	}
	s.citizensByID[c.ID] = *c
	return nil
}

func (s *Store) CitizenChange(_ context.Context, c *directory.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.citizensByID[c.ID]; !ok {
		return fmt.Errorf("no such citizen %d", c.ID)
	}
	s.citizensByID[c.ID] = *c
	return nil
}

func (s *Store) CitizenCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.citizensByID)), nil
}

func (s *Store) CitizenPrevByNumber(_ context.Context, id uint32) (*directory.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.Citizen
	for cid, c := range s.citizensByID {
		if cid < id && (best == nil || cid > best.ID) {
			cc := c
			best = &cc
		}
	}
	return best, nil
}

func (s *Store) CitizenNextByNumber(_ context.Context, id uint32) (*directory.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.Citizen
	for cid, c := range s.citizensByID {
		if cid > id && (best == nil || cid < best.ID) {
			cc := c
			best = &cc
		}
	}
	return best, nil
}

// --- Licenses ---

func (s *Store) LicenseByName(_ context.Context, name string) (*directory.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licensesByName[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) LicensePrev(_ context.Context, name string) (*directory.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.License
	for _, l := range s.licensesByName {
		if l.Name < name {
			if best == nil || l.Name > best.Name {
				ll := l
				best = &ll
			}
		}
	}
	return best, nil
}

func (s *Store) LicenseNext(_ context.Context, name string) (*directory.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.License
	for _, l := range s.licensesByName {
		if l.Name > name {
			if best == nil || l.Name < best.Name {
				ll := l
				best = &ll
			}
		}
	}
	return best, nil
}

func (s *Store) LicenseAdd(_ context.Context, l *directory.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(l.Name)
	if _, ok := s.licensesByName[key]; ok {
		return fmt.Errorf("license %q already exists", l.Name)
	}
	s.nextLicenseID++
	if l.ID == 0 {
		l.ID = s.nextLicenseID
	}
	s.licensesByName[key] = *l
	return nil
}

func (s *Store) LicenseChange(_ context.Context, l *directory.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(l.Name)
	if _, ok := s.licensesByName[key]; !ok {
		return fmt.Errorf("no such license %q", l.Name)
	}
	s.licensesByName[key] = *l
	return nil
}

// --- Contacts ---

func (s *Store) ContactGet(_ context.Context, owner, other uint32) (directory.ContactOptions, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts, ok := s.contacts[contactKey{owner, other}]
	return opts, ok, nil
}

func (s *Store) ContactSet(_ context.Context, owner, other uint32, options directory.ContactOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[contactKey{owner, other}] = options
	return nil
}

func (s *Store) ContactDelete(_ context.Context, owner, other uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, contactKey{owner, other})
	return nil
}

func (s *Store) ContactBlocked(_ context.Context, source, target uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts, ok := s.contacts[contactKey{target, source}]
	if !ok {
		return false, nil
	}
	return opts.Has(directory.AllBlocked), nil
}

func (s *Store) ContactTelegramsAllowed(_ context.Context, owner, other uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts, ok := s.contacts[contactKey{owner, other}]
	if !ok {
		return true, nil
	}
	return !opts.Has(directory.TelegramsBlocked), nil
}

func (s *Store) ContactGetAll(_ context.Context, owner uint32) (map[uint32]directory.ContactOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint32]directory.ContactOptions)
	for k, v := range s.contacts {
		if k.owner == owner {
			out[k.other] = v
		}
	}
	return out, nil
}

// --- Telegrams ---

func (s *Store) TelegramAdd(_ context.Context, to, from uint32, ts int64, message string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTelegramID++
	id := s.nextTelegramID
	s.telegrams[id] = directory.Telegram{
		ID: id, ToCitID: to, FromCitID: from, Timestamp: ts, Message: message,
	}
	return id, nil
}

func (s *Store) TelegramGetUndelivered(_ context.Context, citID uint32) ([]directory.Telegram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []directory.Telegram
	for _, tg := range s.telegrams {
		if tg.ToCitID == citID && !tg.Delivered {
			out = append(out, tg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) TelegramMarkDelivered(_ context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tg, ok := s.telegrams[id]
	if !ok {
		return fmt.Errorf("no such telegram %d", id)
	}
	tg.Delivered = true
	s.telegrams[id] = tg
	return nil
}

func (s *Store) TelegramCountUndelivered(_ context.Context, citID uint32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, tg := range s.telegrams {
		if tg.ToCitID == citID && !tg.Delivered {
			n++
		}
	}
	return n, nil
}

// --- Ejections ---

func (s *Store) EjectionSet(_ context.Context, address uint32, expiration, creation int64, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ejections[address] = directory.Ejection{
		Address: address, Expiration: expiration, Creation: creation, Comment: comment,
	}
	return nil
}

func (s *Store) EjectionByAddress(_ context.Context, address uint32) (*directory.Ejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ejections[address]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) EjectionPrev(_ context.Context, address uint32) (*directory.Ejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.Ejection
	for addr, e := range s.ejections {
		if addr < address && (best == nil || addr > best.Address) {
			ee := e
			best = &ee
		}
	}
	return best, nil
}

func (s *Store) EjectionNext(_ context.Context, address uint32) (*directory.Ejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *directory.Ejection
	for addr, e := range s.ejections {
		if addr > address && (best == nil || addr < best.Address) {
			ee := e
			best = &ee
		}
	}
	return best, nil
}

func (s *Store) EjectionDelete(_ context.Context, address uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ejections, address)
	return nil
}

func (s *Store) EjectionLookup(_ context.Context, address uint32, now int64) (*directory.Ejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ejections[address]
	if !ok || e.Expiration <= now {
		return nil, nil
	}
	return &e, nil
}

var _ directory.Store = (*Store)(nil)
