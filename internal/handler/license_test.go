package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
)

func licenseAddPacket(name string) *protocol.Packet {
	p := protocol.NewPacket(protocol.PacketLicenseAdd)
	p.AddString(protocol.VarWorldName, name)
	p.AddString(protocol.VarLicensePassword, "hunter2")
	p.AddInt(protocol.VarLicenseUsers, 50)
	p.AddInt(protocol.VarLicenseWorldSize, 1000)
	return p
}

func TestLicenseAdd_AdminGate(t *testing.T) {
	ts := newTestServer()
	user := ts.addCitizen("User")
	admin := ts.addCitizen("Root")
	userConn, userFt := ts.loginCitizen(user.ID, user.Name, false)
	adminConn, adminFt := ts.loginCitizen(admin.ID, admin.Name, true)

	// Non-admin is refused.
	LicenseAdd(ts.deps, bgCtx(), userConn.ID, licenseAddPacket("FooBar"))
	assert.Equal(t, protocol.ReasonUnauthorized, lastReason(t, userFt))

	// Admin succeeds.
	LicenseAdd(ts.deps, bgCtx(), adminConn.ID, licenseAddPacket("FooBar"))
	assert.Equal(t, protocol.ReasonSuccess, lastReason(t, adminFt))

	// A second add of the same name is a duplicate.
	LicenseAdd(ts.deps, bgCtx(), adminConn.ID, licenseAddPacket("FooBar"))
	assert.Equal(t, protocol.ReasonWorldAlreadyExists, lastReason(t, adminFt))
}

func TestLicenseAdd_NameValidation(t *testing.T) {
	ts := newTestServer()
	admin := ts.addCitizen("Root")
	conn, ft := ts.loginCitizen(admin.ID, admin.Name, true)

	LicenseAdd(ts.deps, bgCtx(), conn.ID, licenseAddPacket("toolongname"))
	assert.Equal(t, protocol.ReasonNameTooLong, lastReason(t, ft))

	LicenseAdd(ts.deps, bgCtx(), conn.ID, licenseAddPacket("a b"))
	assert.Equal(t, protocol.ReasonNameContainsNonalphanumericChar, lastReason(t, ft))
}

func TestLicenseChange_PreservesImmutableFields(t *testing.T) {
	ts := newTestServer()
	admin := ts.addCitizen("Root")
	conn, ft := ts.loginCitizen(admin.ID, admin.Name, true)

	original := &directory.License{
		Name:        "alpha",
		Creation:    1111,
		LastStart:   2222,
		LastAddress: 0x0a000001,
		Users:       10,
	}
	require.NoError(t, ts.dir.LicenseAdd(bgCtx(), original))

	p := protocol.NewPacket(protocol.PacketLicenseChange)
	p.AddString(protocol.VarWorldName, "alpha")
	p.AddString(protocol.VarLicensePassword, "newpass")
	p.AddInt(protocol.VarLicenseUsers, 75)
	p.AddInt(protocol.VarLicenseCreation, 9999)    // must not stick
	p.AddInt(protocol.VarLicenseLastStart, 9999)   // must not stick
	p.AddUint(protocol.VarLicenseLastAddress, 9)   // must not stick
	LicenseChange(ts.deps, bgCtx(), conn.ID, p)
	assert.Equal(t, protocol.ReasonSuccess, lastReason(t, ft))

	updated, err := ts.dir.LicenseByName(bgCtx(), "alpha")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, int32(75), updated.Users)
	assert.Equal(t, int64(1111), updated.Creation)
	assert.Equal(t, int64(2222), updated.LastStart)
	assert.Equal(t, uint32(0x0a000001), updated.LastAddress)
}

func TestLicenseLookup_NonAdminFieldFiltering(t *testing.T) {
	ts := newTestServer()
	user := ts.addCitizen("User")
	conn, ft := ts.loginCitizen(user.ID, user.Name, false)

	require.NoError(t, ts.dir.LicenseAdd(bgCtx(), &directory.License{
		Name:     "beta",
		Password: "secret",
		Email:    "owner@example.com",
		Users:    25,
	}))

	p := protocol.NewPacket(protocol.PacketLicenseByName)
	p.AddString(protocol.VarWorldName, "beta")
	LicenseLookupByName(ts.deps, bgCtx(), conn.ID, p)

	resp := ft.last()
	require.NotNil(t, resp)
	name, _ := resp.GetString(protocol.VarWorldName)
	assert.Equal(t, "beta", name)
	users, _ := resp.GetInt(protocol.VarLicenseUsers)
	assert.Equal(t, int32(25), users)
	// The security boundary: credentials and contact info never reach a
	// non-admin caller.
	assert.False(t, resp.Has(protocol.VarLicensePassword))
	assert.False(t, resp.Has(protocol.VarLicenseEmail))
}

func TestLicenseLookup_PrevNext(t *testing.T) {
	ts := newTestServer()
	admin := ts.addCitizen("Root")
	conn, ft := ts.loginCitizen(admin.ID, admin.Name, true)

	for _, n := range []string{"aaa", "bbb", "ccc"} {
		require.NoError(t, ts.dir.LicenseAdd(bgCtx(), &directory.License{Name: n}))
	}

	p := protocol.NewPacket(protocol.PacketLicenseNext)
	p.AddString(protocol.VarWorldName, "aaa")
	LicenseLookupNext(ts.deps, bgCtx(), conn.ID, p)
	name, _ := ft.last().GetString(protocol.VarWorldName)
	assert.Equal(t, "bbb", name)

	p = protocol.NewPacket(protocol.PacketLicensePrev)
	p.AddString(protocol.VarWorldName, "ccc")
	LicenseLookupPrev(ts.deps, bgCtx(), conn.ID, p)
	name, _ = ft.last().GetString(protocol.VarWorldName)
	assert.Equal(t, "bbb", name)

	p = protocol.NewPacket(protocol.PacketLicensePrev)
	p.AddString(protocol.VarWorldName, "aaa")
	LicenseLookupPrev(ts.deps, bgCtx(), conn.ID, p)
	assert.Equal(t, protocol.ReasonNoSuchLicense, lastReason(t, ft))
}
