package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aworlds/universe/internal/directory"
)

// Store is a directory.Store backed by the embedded sqlite file opened by
// Open. Query shape mirrors the postgres.Store sibling; the two backends
// intentionally share no code because their driver error conventions
// (pgx.ErrNoRows vs sql.ErrNoRows, $n vs ? placeholders) differ enough
// that a shared layer would hide more than it would save.
type Store struct {
	db *DB
}

// New wraps db as a directory.Store.
func New(db *DB) *Store {
	return &Store{db: db}
}

// --- Citizens ---

func (s *Store) scanCitizen(ctx context.Context, query string, arg any) (*directory.Citizen, error) {
	c := &directory.Citizen{}
	var beta, cav, trial, enabled int
	err := s.db.conn.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Name, &c.Password, &c.PrivPass, &c.Email, &c.Comment, &c.URL,
		&c.Immigration, &c.Expiration, &c.LastLogin, &c.LastAddress, &c.TotalTime,
		&c.BotLimit, &beta, &cav, &trial, &enabled, &c.CAVTemplate, &c.Privacy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Beta, c.CAVEnabled, c.Trial, c.Enabled = beta != 0, cav != 0, trial != 0, enabled != 0
	return c, nil
}

const citizenColumns = `id, name, password, priv_pass, email, comment, url,
	immigration, expiration, last_login, last_address, total_time, bot_limit,
	beta, cav_enabled, trial, enabled, cav_template, privacy`

func (s *Store) CitizenByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE id = ?`, id)
}

func (s *Store) CitizenByName(ctx context.Context, name string) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE name_lower = ?`, strings.ToLower(name))
}

func (s *Store) CitizenAdd(ctx context.Context, c *directory.Citizen) error {
	hashed, err := hashIfNeeded(c.Password)
	if err != nil {
		return err
	}
	res, err := s.db.conn.ExecContext(ctx, `INSERT INTO citizens
		(name, name_lower, password, priv_pass, email, comment, url, immigration,
		 expiration, last_login, last_address, total_time, bot_limit, beta,
		 cav_enabled, trial, enabled, cav_template, privacy)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.Name, strings.ToLower(c.Name), hashed, c.PrivPass, c.Email, c.Comment, c.URL,
		c.Immigration, c.Expiration, c.LastLogin, c.LastAddress, c.TotalTime, c.BotLimit,
		boolToInt(c.Beta), boolToInt(c.CAVEnabled), boolToInt(c.Trial), boolToInt(c.Enabled),
		c.CAVTemplate, c.Privacy,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint32(id)
	return nil
}

func (s *Store) CitizenChange(ctx context.Context, c *directory.Citizen) error {
	hashed, err := hashIfNeeded(c.Password)
	if err != nil {
		return err
	}
	_, err = s.db.conn.ExecContext(ctx, `UPDATE citizens SET
		name=?, name_lower=?, password=?, priv_pass=?, email=?, comment=?, url=?,
		expiration=?, bot_limit=?, beta=?, cav_enabled=?, trial=?, enabled=?,
		cav_template=?, privacy=?
		WHERE id=?`,
		c.Name, strings.ToLower(c.Name), hashed, c.PrivPass, c.Email, c.Comment, c.URL,
		c.Expiration, c.BotLimit, boolToInt(c.Beta), boolToInt(c.CAVEnabled), boolToInt(c.Trial),
		boolToInt(c.Enabled), c.CAVTemplate, c.Privacy, c.ID,
	)
	return err
}

func (s *Store) CitizenCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.conn.QueryRowContext(ctx, `SELECT count(*) FROM citizens`).Scan(&n)
	return n, err
}

func (s *Store) CitizenPrevByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE id < ? ORDER BY id DESC LIMIT 1`, id)
}

func (s *Store) CitizenNextByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE id > ? ORDER BY id ASC LIMIT 1`, id)
}

// --- Licenses ---

const licenseColumns = `id, name, password, email, comment, creation, expiration,
	last_start, last_address, users, world_size, hidden, tourists, voip, plugins`

func (s *Store) scanLicense(ctx context.Context, query string, arg any) (*directory.License, error) {
	l := &directory.License{}
	var hidden, tourists, voip, plugins int
	err := s.db.conn.QueryRowContext(ctx, query, arg).Scan(
		&l.ID, &l.Name, &l.Password, &l.Email, &l.Comment, &l.Creation, &l.Expiration,
		&l.LastStart, &l.LastAddress, &l.Users, &l.WorldSize, &hidden, &tourists, &voip, &plugins,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.Hidden, l.Tourists, l.Voip, l.Plugins = hidden != 0, tourists != 0, voip != 0, plugins != 0
	return l, nil
}

func (s *Store) LicenseByName(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower = ?`, strings.ToLower(name))
}

func (s *Store) LicensePrev(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower < ? ORDER BY name_lower DESC LIMIT 1`, strings.ToLower(name))
}

func (s *Store) LicenseNext(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower > ? ORDER BY name_lower ASC LIMIT 1`, strings.ToLower(name))
}

func (s *Store) LicenseAdd(ctx context.Context, l *directory.License) error {
	hashed, err := hashIfNeeded(l.Password)
	if err != nil {
		return err
	}
	res, err := s.db.conn.ExecContext(ctx, `INSERT INTO licenses
		(name, name_lower, password, email, comment, creation, expiration, last_start,
		 last_address, users, world_size, hidden, tourists, voip, plugins)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.Name, strings.ToLower(l.Name), hashed, l.Email, l.Comment, l.Creation, l.Expiration,
		l.LastStart, l.LastAddress, l.Users, l.WorldSize, boolToInt(l.Hidden), boolToInt(l.Tourists),
		boolToInt(l.Voip), boolToInt(l.Plugins),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint32(id)
	return nil
}

func (s *Store) LicenseChange(ctx context.Context, l *directory.License) error {
	hashed, err := hashIfNeeded(l.Password)
	if err != nil {
		return err
	}
	_, err = s.db.conn.ExecContext(ctx, `UPDATE licenses SET
		password=?, email=?, comment=?, expiration=?, users=?, world_size=?,
		hidden=?, tourists=?, voip=?, plugins=?
		WHERE id=?`,
		hashed, l.Email, l.Comment, l.Expiration, l.Users, l.WorldSize,
		boolToInt(l.Hidden), boolToInt(l.Tourists), boolToInt(l.Voip), boolToInt(l.Plugins), l.ID,
	)
	return err
}

// --- Contacts ---

func (s *Store) ContactGet(ctx context.Context, owner, other uint32) (directory.ContactOptions, bool, error) {
	var opts int64
	err := s.db.conn.QueryRowContext(ctx, `SELECT options FROM contacts WHERE owner_cit_id=? AND other_cit_id=?`, owner, other).Scan(&opts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return directory.ContactOptions(opts), true, nil
}

func (s *Store) ContactSet(ctx context.Context, owner, other uint32, options directory.ContactOptions) error {
	_, err := s.db.conn.ExecContext(ctx, `INSERT INTO contacts (owner_cit_id, other_cit_id, options)
		VALUES (?,?,?)
		ON CONFLICT (owner_cit_id, other_cit_id) DO UPDATE SET options = excluded.options`,
		owner, other, int64(options))
	return err
}

func (s *Store) ContactDelete(ctx context.Context, owner, other uint32) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM contacts WHERE owner_cit_id=? AND other_cit_id=?`, owner, other)
	return err
}

func (s *Store) ContactBlocked(ctx context.Context, source, target uint32) (bool, error) {
	opts, ok, err := s.ContactGet(ctx, target, source)
	if err != nil || !ok {
		return false, err
	}
	return opts.Has(directory.AllBlocked), nil
}

func (s *Store) ContactTelegramsAllowed(ctx context.Context, owner, other uint32) (bool, error) {
	opts, ok, err := s.ContactGet(ctx, owner, other)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return !opts.Has(directory.TelegramsBlocked), nil
}

func (s *Store) ContactGetAll(ctx context.Context, owner uint32) (map[uint32]directory.ContactOptions, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT other_cit_id, options FROM contacts WHERE owner_cit_id=?`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint32]directory.ContactOptions)
	for rows.Next() {
		var other uint32
		var opts int64
		if err := rows.Scan(&other, &opts); err != nil {
			return nil, err
		}
		out[other] = directory.ContactOptions(opts)
	}
	return out, rows.Err()
}

// --- Telegrams ---

func (s *Store) TelegramAdd(ctx context.Context, to, from uint32, ts int64, message string) (uint32, error) {
	res, err := s.db.conn.ExecContext(ctx, `INSERT INTO telegrams (to_cit_id, from_cit_id, ts, message)
		VALUES (?,?,?,?)`, to, from, ts, message)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint32(id), err
}

func (s *Store) TelegramGetUndelivered(ctx context.Context, citID uint32) ([]directory.Telegram, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT id, to_cit_id, from_cit_id, ts, message, delivered
		FROM telegrams WHERE to_cit_id=? AND delivered=0 ORDER BY ts ASC, id ASC`, citID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []directory.Telegram
	for rows.Next() {
		var tg directory.Telegram
		var delivered int
		if err := rows.Scan(&tg.ID, &tg.ToCitID, &tg.FromCitID, &tg.Timestamp, &tg.Message, &delivered); err != nil {
			return nil, err
		}
		tg.Delivered = delivered != 0
		out = append(out, tg)
	}
	return out, rows.Err()
}

func (s *Store) TelegramMarkDelivered(ctx context.Context, id uint32) error {
	_, err := s.db.conn.ExecContext(ctx, `UPDATE telegrams SET delivered=1 WHERE id=?`, id)
	return err
}

func (s *Store) TelegramCountUndelivered(ctx context.Context, citID uint32) (int64, error) {
	var n int64
	err := s.db.conn.QueryRowContext(ctx, `SELECT count(*) FROM telegrams WHERE to_cit_id=? AND delivered=0`, citID).Scan(&n)
	return n, err
}

// --- Ejections ---

func (s *Store) scanEjection(ctx context.Context, query string, arg any) (*directory.Ejection, error) {
	e := &directory.Ejection{}
	err := s.db.conn.QueryRowContext(ctx, query, arg).Scan(&e.Address, &e.Expiration, &e.Creation, &e.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) EjectionSet(ctx context.Context, address uint32, expiration, creation int64, comment string) error {
	_, err := s.db.conn.ExecContext(ctx, `INSERT INTO ejections (address, expiration, creation, comment)
		VALUES (?,?,?,?)
		ON CONFLICT (address) DO UPDATE SET expiration=excluded.expiration, creation=excluded.creation, comment=excluded.comment`,
		address, expiration, creation, comment)
	return err
}

func (s *Store) EjectionByAddress(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address=?`, address)
}

func (s *Store) EjectionPrev(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address < ? ORDER BY address DESC LIMIT 1`, address)
}

func (s *Store) EjectionNext(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address > ? ORDER BY address ASC LIMIT 1`, address)
}

func (s *Store) EjectionDelete(ctx context.Context, address uint32) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM ejections WHERE address=?`, address)
	return err
}

func (s *Store) EjectionLookup(ctx context.Context, address uint32, now int64) (*directory.Ejection, error) {
	e, err := s.EjectionByAddress(ctx, address)
	if err != nil || e == nil || e.Expiration <= now {
		return nil, err
	}
	return e, nil
}

func hashIfNeeded(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") {
		return password, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ directory.Store = (*Store)(nil)
