package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
)

func telegramSendPacket(to, message string) *protocol.Packet {
	p := protocol.NewPacket(protocol.PacketTelegramSend)
	p.AddString(protocol.VarTelegramTo, to)
	p.AddString(protocol.VarTelegramMessage, message)
	return p
}

func TestTelegramSend_OfflineTargetStillPersists(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)
	// B stays offline.

	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("B", "hello"))
	assert.Equal(t, protocol.ReasonSuccess, lastReason(t, ftA))

	n, err := ts.dir.TelegramCountUndelivered(bgCtx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTelegramGet_TimestampOrderAndMoreRemain(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	connA, _ := ts.loginCitizen(a.ID, a.Name, false)
	connB, ftB := ts.loginCitizen(b.ID, b.Name, false)

	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("B", "first"))
	ts.now = ts.now.Add(5 * time.Second)
	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("B", "second"))
	ts.now = ts.now.Add(5 * time.Second)

	TelegramGet(ts.deps, bgCtx(), connB.ID, protocol.NewPacket(protocol.PacketTelegramGet))
	resp := ftB.last()
	require.NotNil(t, resp)
	assert.Equal(t, protocol.PacketTelegramDeliver, resp.Type)
	msg, _ := resp.GetString(protocol.VarTelegramMessage)
	assert.Equal(t, "first", msg)
	sender, _ := resp.GetString(protocol.VarTelegramCitizenName)
	assert.Equal(t, "A", sender)
	age, _ := resp.GetInt(protocol.VarTelegramAge)
	assert.Equal(t, int32(10), age)
	more, _ := resp.GetByte(protocol.VarTelegramsMoreRemain)
	assert.Equal(t, byte(1), more)

	// Delivery is monotonic: the next get returns the second telegram,
	// with nothing further remaining.
	TelegramGet(ts.deps, bgCtx(), connB.ID, protocol.NewPacket(protocol.PacketTelegramGet))
	resp = ftB.last()
	msg, _ = resp.GetString(protocol.VarTelegramMessage)
	assert.Equal(t, "second", msg)
	more, _ = resp.GetByte(protocol.VarTelegramsMoreRemain)
	assert.Equal(t, byte(0), more)
}

func TestTelegramGet_UnknownSenderRendered(t *testing.T) {
	ts := newTestServer()
	b := ts.addCitizen("B")
	connB, ftB := ts.loginCitizen(b.ID, b.Name, false)

	// Sender id 999 has no citizen row.
	_, err := ts.dir.TelegramAdd(bgCtx(), b.ID, 999, ts.now.Unix(), "ghost mail")
	require.NoError(t, err)

	TelegramGet(ts.deps, bgCtx(), connB.ID, protocol.NewPacket(protocol.PacketTelegramGet))
	resp := ftB.last()
	sender, _ := resp.GetString(protocol.VarTelegramCitizenName)
	assert.Equal(t, "<unknown>", sender)
}

func TestTelegramSend_BlockedEitherDirection(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)

	// B blocks telegrams from A.
	require.NoError(t, ts.dir.ContactSet(bgCtx(), b.ID, a.ID, directory.TelegramsBlocked))

	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("B", "unwanted"))
	assert.Equal(t, protocol.ReasonTelegramBlocked, lastReason(t, ftA))

	// The directory count for B is unchanged.
	n, err := ts.dir.TelegramCountUndelivered(bgCtx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTelegramSend_NotifiesOnlineTarget(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	connA, _ := ts.loginCitizen(a.ID, a.Name, false)
	_, ftB := ts.loginCitizen(b.ID, b.Name, false)

	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("B", "ping"))

	require.NotNil(t, ftB.last())
	assert.Equal(t, protocol.PacketTelegramUpdateAvailable, ftB.last().Type)
}

func TestTelegramSend_NoSuchTarget(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)

	TelegramSend(ts.deps, bgCtx(), connA.ID, telegramSendPacket("Nobody", "hi"))
	assert.Equal(t, protocol.ReasonNoSuchCitizen, lastReason(t, ftA))
}
