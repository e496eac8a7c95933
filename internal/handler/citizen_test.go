package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aworlds/universe/internal/protocol"
)

func TestCitizenChange_NonAdminCannotEditAdminFields(t *testing.T) {
	ts := newTestServer()
	c := ts.addCitizen("Wanderer")
	conn, ft := ts.loginCitizen(c.ID, c.Name, false)

	p := protocol.NewPacket(protocol.PacketCitizenChange)
	p.AddUint(protocol.VarCitizenNumber, c.ID)
	p.AddString(protocol.VarCitizenComment, "should not stick")
	p.AddByte(protocol.VarCitizenEnabled, 0)
	p.AddInt(protocol.VarCitizenBotLimit, 99)

	CitizenChange(ts.deps, bgCtx(), conn.ID, p)

	resp := ft.last()
	require.NotNil(t, resp)
	reason, _ := resp.GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonSuccess), reason)

	updated, err := ts.dir.CitizenByNumber(bgCtx(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "", updated.Comment)
	assert.True(t, updated.Enabled)
	assert.Equal(t, int32(0), updated.BotLimit)
}

func TestCitizenChange_UnauthorizedForOtherCitizen(t *testing.T) {
	ts := newTestServer()
	self := ts.addCitizen("A")
	other := ts.addCitizen("B")
	conn, ft := ts.loginCitizen(self.ID, self.Name, false)

	p := protocol.NewPacket(protocol.PacketCitizenChange)
	p.AddUint(protocol.VarCitizenNumber, other.ID)
	p.AddString(protocol.VarCitizenName, "Hijacked")

	CitizenChange(ts.deps, bgCtx(), conn.ID, p)

	reason, _ := ft.last().GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonUnauthorized), reason)
}

func TestCitizenChange_AdminMayEditAdminFields(t *testing.T) {
	ts := newTestServer()
	admin := ts.addCitizen("Root")
	target := ts.addCitizen("Target")
	conn, ft := ts.loginCitizen(admin.ID, admin.Name, true)

	p := protocol.NewPacket(protocol.PacketCitizenChange)
	p.AddUint(protocol.VarCitizenNumber, target.ID)
	p.AddString(protocol.VarCitizenComment, "flagged")
	p.AddByte(protocol.VarCitizenEnabled, 0)

	CitizenChange(ts.deps, bgCtx(), conn.ID, p)

	reason, _ := ft.last().GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonSuccess), reason)

	updated, err := ts.dir.CitizenByNumber(bgCtx(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "flagged", updated.Comment)
	assert.False(t, updated.Enabled)
}

func TestCitizenAdd_RejectsDuplicateName(t *testing.T) {
	ts := newTestServer()
	ts.addCitizen("Taken")
	conn, ft := ts.connect()

	p := protocol.NewPacket(protocol.PacketCitizenAdd)
	p.AddString(protocol.VarCitizenName, "Taken")

	CitizenAdd(ts.deps, bgCtx(), conn.ID, p)

	reason, _ := ft.last().GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonNameAlreadyUsed), reason)
}

func TestCitizenAdd_GatedByImmigrationFlag(t *testing.T) {
	ts := newTestServer()
	ts.deps.Config.Flags.AllowImmigration = false
	conn, ft := ts.connect()

	p := protocol.NewPacket(protocol.PacketCitizenAdd)
	p.AddString(protocol.VarCitizenName, "Newcomer")

	CitizenAdd(ts.deps, bgCtx(), conn.ID, p)

	reason, _ := ft.last().GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonUnauthorized), reason)
}

func TestCitizenLookup_NonAdminFieldFiltering(t *testing.T) {
	ts := newTestServer()
	target := ts.addCitizen("Target")
	target.Email = "target@example.com"
	target.Comment = "operator note"
	require.NoError(t, ts.dir.CitizenChange(bgCtx(), target))
	user := ts.addCitizen("User")
	conn, ft := ts.loginCitizen(user.ID, user.Name, false)

	p := protocol.NewPacket(protocol.PacketCitizenLookupByName)
	p.AddString(protocol.VarCitizenName, "Target")
	CitizenLookupByName(ts.deps, bgCtx(), conn.ID, p)

	resp := ft.last()
	require.NotNil(t, resp)
	name, _ := resp.GetString(protocol.VarCitizenName)
	assert.Equal(t, "Target", name)
	assert.False(t, resp.Has(protocol.VarCitizenEmail))
	assert.False(t, resp.Has(protocol.VarCitizenComment))
	assert.False(t, resp.Has(protocol.VarCitizenLastAddress))

	adminConn, adminFt := ts.loginCitizen(ts.addCitizen("Root").ID, "Root", true)
	CitizenLookupByName(ts.deps, bgCtx(), adminConn.ID, p)
	resp = adminFt.last()
	require.NotNil(t, resp)
	email, _ := resp.GetString(protocol.VarCitizenEmail)
	assert.Equal(t, "target@example.com", email)
}

func TestCitizenLookupByNumber_NotFound(t *testing.T) {
	ts := newTestServer()
	conn, ft := ts.connect()

	p := protocol.NewPacket(protocol.PacketCitizenLookupByNumber)
	p.AddUint(protocol.VarCitizenNumber, 404)

	CitizenLookupByNumber(ts.deps, bgCtx(), conn.ID, p)

	reason, _ := ft.last().GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonNoSuchCitizen), reason)
}
