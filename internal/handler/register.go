package handler

import (
	"context"

	"github.com/aworlds/universe/internal/dispatch"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// RegisterAll wires every packet handler into d, closing over deps so
// the dispatch.HandlerFunc signature stays free of server-global state.
func RegisterAll(d *dispatch.Dispatcher, deps *Deps) {
	bind := func(pt protocol.PacketType, fn func(*Deps, context.Context, registry.ConnectionID, *protocol.Packet)) {
		d.Register(pt, func(ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
			fn(deps, ctx, cid, p)
		})
	}

	bind(protocol.PacketLogin, Login)

	bind(protocol.PacketCitizenChange, CitizenChange)
	bind(protocol.PacketCitizenAdd, CitizenAdd)
	bind(protocol.PacketCitizenLookupByNumber, CitizenLookupByNumber)
	bind(protocol.PacketCitizenLookupByName, CitizenLookupByName)
	bind(protocol.PacketCitizenLookupPrev, CitizenLookupPrev)
	bind(protocol.PacketCitizenLookupNext, CitizenLookupNext)

	bind(protocol.PacketLicenseAdd, LicenseAdd)
	bind(protocol.PacketLicenseChange, LicenseChange)
	bind(protocol.PacketLicenseByName, LicenseLookupByName)
	bind(protocol.PacketLicensePrev, LicenseLookupPrev)
	bind(protocol.PacketLicenseNext, LicenseLookupNext)

	bind(protocol.PacketContactAdd, ContactAdd)
	bind(protocol.PacketContactConfirm, ContactConfirm)
	bind(protocol.PacketContactDelete, ContactDelete)
	bind(protocol.PacketContactChange, ContactChange)
	bind(protocol.PacketContactList, ContactList)

	bind(protocol.PacketTelegramSend, TelegramSend)
	bind(protocol.PacketTelegramGet, TelegramGet)

	bind(protocol.PacketEjectAdd, EjectAdd)
	bind(protocol.PacketEjectLookupByAddress, EjectLookupByAddress)
	bind(protocol.PacketEjectLookupPrev, EjectLookupPrev)
	bind(protocol.PacketEjectLookupNext, EjectLookupNext)

	bind(protocol.PacketSetAfk, SetAfk)
	bind(protocol.PacketUserList, UserList)

	bind(protocol.PacketWorldLogin, WorldLogin)
}
