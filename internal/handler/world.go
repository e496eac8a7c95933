package handler

import (
	"context"
	"encoding/binary"
	"net"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// WorldLogin authenticates a world server against its License and
// registers it under world_name in the connection registry's secondary
// index.
func WorldLogin(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	password, ok := p.GetString(protocol.VarLicensePassword)
	if !ok {
		return
	}

	license, err := deps.Directory.LicenseByName(ctx, name)
	if err != nil {
		worldLoginResult(deps, cid, protocol.ReasonDatabaseError)
		return
	}
	if license == nil {
		worldLoginResult(deps, cid, protocol.ReasonNoSuchLicense)
		return
	}
	if !directory.VerifyPassword(license.Password, password) {
		worldLoginResult(deps, cid, protocol.ReasonInvalidPassword)
		return
	}

	now := deps.Clock().Unix()
	license.LastStart = now
	license.LastAddress = remoteAddressUint32(c)
	if err := deps.Directory.LicenseChange(ctx, license); err != nil {
		worldLoginResult(deps, cid, protocol.ReasonDatabaseError)
		return
	}

	c.Session.BecomeWorld(name, license.ID)
	deps.Registry.IndexWorldName(cid, name)
	worldLoginResult(deps, cid, protocol.ReasonSuccess)
	deps.Tabs.RegenerateWorldLists(ctx)
}

func worldLoginResult(deps *Deps, cid registry.ConnectionID, reason protocol.ReasonCode) {
	p := protocol.NewPacket(protocol.PacketWorldLoginResult)
	p.AddInt(protocol.VarReasonCode, int32(reason))
	send(deps, cid, p)
}

// remoteAddressUint32 renders a connection's peer IPv4 address as a
// big-endian uint32, the form License/Ejection rows store it in.
func remoteAddressUint32(c *registry.Connection) uint32 {
	tcpAddr, ok := c.Transport.RemoteAddr().(*net.TCPAddr)
	if !ok || tcpAddr.IP.To4() == nil {
		return 0
	}
	return binary.BigEndian.Uint32(tcpAddr.IP.To4())
}
