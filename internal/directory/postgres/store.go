package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/aworlds/universe/internal/directory"
)

// Store is a directory.Store backed by PostgreSQL via pgx: one struct
// wrapping *DB, one method per query, errors.Is(pgx.ErrNoRows) mapped
// to the no-such-row arm of the directory result triad.
type Store struct {
	db *DB
}

// New wraps db as a directory.Store.
func New(db *DB) *Store {
	return &Store{db: db}
}

// --- Citizens ---

func (s *Store) CitizenByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT id, name, password, priv_pass, email, comment, url,
		immigration, expiration, last_login, last_address, total_time, bot_limit,
		beta, cav_enabled, trial, enabled, cav_template, privacy
		FROM citizens WHERE id = $1`, id)
}

func (s *Store) CitizenByName(ctx context.Context, name string) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT id, name, password, priv_pass, email, comment, url,
		immigration, expiration, last_login, last_address, total_time, bot_limit,
		beta, cav_enabled, trial, enabled, cav_template, privacy
		FROM citizens WHERE name_lower = $1`, strings.ToLower(name))
}

func (s *Store) scanCitizen(ctx context.Context, query string, arg any) (*directory.Citizen, error) {
	c := &directory.Citizen{}
	err := s.db.Pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Name, &c.Password, &c.PrivPass, &c.Email, &c.Comment, &c.URL,
		&c.Immigration, &c.Expiration, &c.LastLogin, &c.LastAddress, &c.TotalTime,
		&c.BotLimit, &c.Beta, &c.CAVEnabled, &c.Trial, &c.Enabled, &c.CAVTemplate, &c.Privacy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CitizenAdd(ctx context.Context, c *directory.Citizen) error {
	hashed, err := hashIfNeeded(c.Password)
	if err != nil {
		return err
	}
	row := s.db.Pool.QueryRow(ctx, `INSERT INTO citizens
		(name, name_lower, password, priv_pass, email, comment, url, immigration,
		 expiration, last_login, last_address, total_time, bot_limit, beta,
		 cav_enabled, trial, enabled, cav_template, privacy)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id`,
		c.Name, strings.ToLower(c.Name), hashed, c.PrivPass, c.Email, c.Comment, c.URL,
		c.Immigration, c.Expiration, c.LastLogin, c.LastAddress, c.TotalTime, c.BotLimit,
		c.Beta, c.CAVEnabled, c.Trial, c.Enabled, c.CAVTemplate, c.Privacy,
	)
	return row.Scan(&c.ID)
}

func (s *Store) CitizenChange(ctx context.Context, c *directory.Citizen) error {
	hashed, err := hashIfNeeded(c.Password)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `UPDATE citizens SET
		name=$2, name_lower=$3, password=$4, priv_pass=$5, email=$6, comment=$7, url=$8,
		expiration=$9, bot_limit=$10, beta=$11, cav_enabled=$12, trial=$13, enabled=$14,
		cav_template=$15, privacy=$16
		WHERE id=$1`,
		c.ID, c.Name, strings.ToLower(c.Name), hashed, c.PrivPass, c.Email, c.Comment, c.URL,
		c.Expiration, c.BotLimit, c.Beta, c.CAVEnabled, c.Trial, c.Enabled, c.CAVTemplate, c.Privacy,
	)
	return err
}

func (s *Store) CitizenCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Pool.QueryRow(ctx, `SELECT count(*) FROM citizens`).Scan(&n)
	return n, err
}

func (s *Store) CitizenPrevByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT id, name, password, priv_pass, email, comment, url,
		immigration, expiration, last_login, last_address, total_time, bot_limit,
		beta, cav_enabled, trial, enabled, cav_template, privacy
		FROM citizens WHERE id < $1 ORDER BY id DESC LIMIT 1`, id)
}

func (s *Store) CitizenNextByNumber(ctx context.Context, id uint32) (*directory.Citizen, error) {
	return s.scanCitizen(ctx, `SELECT id, name, password, priv_pass, email, comment, url,
		immigration, expiration, last_login, last_address, total_time, bot_limit,
		beta, cav_enabled, trial, enabled, cav_template, privacy
		FROM citizens WHERE id > $1 ORDER BY id ASC LIMIT 1`, id)
}

// --- Licenses ---

func (s *Store) scanLicense(ctx context.Context, query string, arg any) (*directory.License, error) {
	l := &directory.License{}
	err := s.db.Pool.QueryRow(ctx, query, arg).Scan(
		&l.ID, &l.Name, &l.Password, &l.Email, &l.Comment, &l.Creation, &l.Expiration,
		&l.LastStart, &l.LastAddress, &l.Users, &l.WorldSize, &l.Hidden, &l.Tourists,
		&l.Voip, &l.Plugins,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

const licenseColumns = `id, name, password, email, comment, creation, expiration,
	last_start, last_address, users, world_size, hidden, tourists, voip, plugins`

func (s *Store) LicenseByName(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower = $1`, strings.ToLower(name))
}

func (s *Store) LicensePrev(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower < $1 ORDER BY name_lower DESC LIMIT 1`, strings.ToLower(name))
}

func (s *Store) LicenseNext(ctx context.Context, name string) (*directory.License, error) {
	return s.scanLicense(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE name_lower > $1 ORDER BY name_lower ASC LIMIT 1`, strings.ToLower(name))
}

func (s *Store) LicenseAdd(ctx context.Context, l *directory.License) error {
	hashed, err := hashIfNeeded(l.Password)
	if err != nil {
		return err
	}
	row := s.db.Pool.QueryRow(ctx, `INSERT INTO licenses
		(name, name_lower, password, email, comment, creation, expiration, last_start,
		 last_address, users, world_size, hidden, tourists, voip, plugins)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		l.Name, strings.ToLower(l.Name), hashed, l.Email, l.Comment, l.Creation, l.Expiration,
		l.LastStart, l.LastAddress, l.Users, l.WorldSize, l.Hidden, l.Tourists, l.Voip, l.Plugins,
	)
	return row.Scan(&l.ID)
}

func (s *Store) LicenseChange(ctx context.Context, l *directory.License) error {
	hashed, err := hashIfNeeded(l.Password)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `UPDATE licenses SET
		password=$2, email=$3, comment=$4, expiration=$5, users=$6, world_size=$7,
		hidden=$8, tourists=$9, voip=$10, plugins=$11
		WHERE id=$1`,
		l.ID, hashed, l.Email, l.Comment, l.Expiration, l.Users, l.WorldSize,
		l.Hidden, l.Tourists, l.Voip, l.Plugins,
	)
	return err
}

// --- Contacts ---

func (s *Store) ContactGet(ctx context.Context, owner, other uint32) (directory.ContactOptions, bool, error) {
	var opts int64
	err := s.db.Pool.QueryRow(ctx, `SELECT options FROM contacts WHERE owner_cit_id=$1 AND other_cit_id=$2`, owner, other).Scan(&opts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return directory.ContactOptions(opts), true, nil
}

func (s *Store) ContactSet(ctx context.Context, owner, other uint32, options directory.ContactOptions) error {
	_, err := s.db.Pool.Exec(ctx, `INSERT INTO contacts (owner_cit_id, other_cit_id, options)
		VALUES ($1,$2,$3)
		ON CONFLICT (owner_cit_id, other_cit_id) DO UPDATE SET options = EXCLUDED.options`,
		owner, other, int64(options))
	return err
}

func (s *Store) ContactDelete(ctx context.Context, owner, other uint32) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM contacts WHERE owner_cit_id=$1 AND other_cit_id=$2`, owner, other)
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
	rows, err := s.db.Pool.Query(ctx, `SELECT other_cit_id, options FROM contacts WHERE owner_cit_id=$1`, owner)
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
	var id uint32
	err := s.db.Pool.QueryRow(ctx, `INSERT INTO telegrams (to_cit_id, from_cit_id, ts, message)
		VALUES ($1,$2,$3,$4) RETURNING id`, to, from, ts, message).Scan(&id)
	return id, err
}

func (s *Store) TelegramGetUndelivered(ctx context.Context, citID uint32) ([]directory.Telegram, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT id, to_cit_id, from_cit_id, ts, message, delivered
		FROM telegrams WHERE to_cit_id=$1 AND delivered=FALSE ORDER BY ts ASC, id ASC`, citID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []directory.Telegram
	for rows.Next() {
		var tg directory.Telegram
		if err := rows.Scan(&tg.ID, &tg.ToCitID, &tg.FromCitID, &tg.Timestamp, &tg.Message, &tg.Delivered); err != nil {
			return nil, err
		}
		out = append(out, tg)
	}
	return out, rows.Err()
}

func (s *Store) TelegramMarkDelivered(ctx context.Context, id uint32) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE telegrams SET delivered=TRUE WHERE id=$1`, id)
	return err
}

func (s *Store) TelegramCountUndelivered(ctx context.Context, citID uint32) (int64, error) {
	var n int64
	err := s.db.Pool.QueryRow(ctx, `SELECT count(*) FROM telegrams WHERE to_cit_id=$1 AND delivered=FALSE`, citID).Scan(&n)
	return n, err
}

// --- Ejections ---

func (s *Store) scanEjection(ctx context.Context, query string, arg any) (*directory.Ejection, error) {
	e := &directory.Ejection{}
	err := s.db.Pool.QueryRow(ctx, query, arg).Scan(&e.Address, &e.Expiration, &e.Creation, &e.Comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) EjectionSet(ctx context.Context, address uint32, expiration, creation int64, comment string) error {
	_, err := s.db.Pool.Exec(ctx, `INSERT INTO ejections (address, expiration, creation, comment)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (address) DO UPDATE SET expiration=EXCLUDED.expiration, creation=EXCLUDED.creation, comment=EXCLUDED.comment`,
		address, expiration, creation, comment)
	return err
}

func (s *Store) EjectionByAddress(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address=$1`, address)
}

func (s *Store) EjectionPrev(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address < $1 ORDER BY address DESC LIMIT 1`, address)
}

func (s *Store) EjectionNext(ctx context.Context, address uint32) (*directory.Ejection, error) {
	return s.scanEjection(ctx, `SELECT address, expiration, creation, comment FROM ejections WHERE address > $1 ORDER BY address ASC LIMIT 1`, address)
}

func (s *Store) EjectionDelete(ctx context.Context, address uint32) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM ejections WHERE address=$1`, address)
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
	// Already-hashed passwords (bcrypt prefix) pass through unchanged so
	// CitizenChange calls that don't intend to rotate a password are
	// idempotent.
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") {
		return password, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

var _ directory.Store = (*Store)(nil)
