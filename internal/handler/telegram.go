package handler

import (
	"context"

	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// TelegramSend stores an asynchronous message from the logged-in citizen
// to a named target, requiring both directions to allow telegrams.
// ContactTelegramsAllowed(owner, other) always reads "does owner allow
// telegrams from other".
func TelegramSend(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID
	targetName, ok := p.GetString(protocol.VarTelegramTo)
	if !ok {
		return
	}
	message, ok := p.GetString(protocol.VarTelegramMessage)
	if !ok {
		return
	}

	target, err := deps.Directory.CitizenByName(ctx, targetName)
	if err != nil {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonDatabaseError)
		return
	}
	if target == nil {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonNoSuchCitizen)
		return
	}

	selfAllows, err := deps.Directory.ContactTelegramsAllowed(ctx, self, target.ID)
	if err != nil {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonDatabaseError)
		return
	}
	targetAllows, err := deps.Directory.ContactTelegramsAllowed(ctx, target.ID, self)
	if err != nil {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonDatabaseError)
		return
	}
	if !selfAllows || !targetAllows {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonTelegramBlocked)
		return
	}

	if _, err := deps.Directory.TelegramAdd(ctx, target.ID, self, deps.Clock().Unix(), message); err != nil {
		reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonUnableToSendTelegram)
		return
	}

	if targetConn, online := deps.Registry.GetByCitizenID(target.ID); online {
		sendTo(deps, targetConn, protocol.NewPacket(protocol.PacketTelegramUpdateAvailable))
	}
	reply(deps, cid, protocol.PacketTelegramSend, protocol.ReasonSuccess)
}

// TelegramGet returns the oldest undelivered telegram for the logged-in
// citizen, marking it delivered, with a more_remain flag reporting
// whether the queue held a second item at call time. Age saturates at
// zero rather than going negative.
func TelegramGet(deps *Deps, ctx context.Context, cid registry.ConnectionID, _ *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID

	undelivered, err := deps.Directory.TelegramGetUndelivered(ctx, self)
	if err != nil {
		reply(deps, cid, protocol.PacketTelegramDeliver, protocol.ReasonUnableToGetTelegram)
		return
	}
	if len(undelivered) == 0 {
		reply(deps, cid, protocol.PacketTelegramDeliver, protocol.ReasonUnableToGetTelegram)
		return
	}

	tg := undelivered[0]
	if err := deps.Directory.TelegramMarkDelivered(ctx, tg.ID); err != nil {
		reply(deps, cid, protocol.PacketTelegramDeliver, protocol.ReasonUnableToGetTelegram)
		return
	}

	senderName := "<unknown>"
	if sender, err := deps.Directory.CitizenByNumber(ctx, tg.FromCitID); err == nil && sender != nil {
		senderName = sender.Name
	}

	age := deps.Clock().Unix() - tg.Timestamp
	if age < 0 {
		age = 0
	}

	resp := protocol.NewPacket(protocol.PacketTelegramDeliver)
	resp.AddInt(protocol.VarReasonCode, int32(protocol.ReasonSuccess))
	resp.AddString(protocol.VarTelegramCitizenName, senderName)
	resp.AddString(protocol.VarTelegramMessage, tg.Message)
	resp.AddInt(protocol.VarTelegramAge, int32(age))
	resp.AddByte(protocol.VarTelegramsMoreRemain, boolByte(len(undelivered) >= 2))
	send(deps, cid, resp)
}
