package protocol

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewPacket(PacketContactAdd)
	p.AddUint(VarContactListCitizenID, 42)
	p.AddString(VarContactListName, "Traveler")
	p.AddInt(VarReasonCode, int32(ReasonSuccess))
	p.AddByte(VarAFKStatus, 1)
	p.AddData(VarTelegramMessage, []byte{0x00, 0x01, 0xff})

	wire, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Type != PacketContactAdd {
		t.Fatalf("type = %v, want PacketContactAdd", got.Type)
	}
	if v, ok := got.GetUint(VarContactListCitizenID); !ok || v != 42 {
		t.Fatalf("CitizenID = %v, %v", v, ok)
	}
	if v, ok := got.GetString(VarContactListName); !ok || v != "Traveler" {
		t.Fatalf("Name = %q, %v", v, ok)
	}
	if v, ok := got.GetInt(VarReasonCode); !ok || v != int32(ReasonSuccess) {
		t.Fatalf("ReasonCode = %v, %v", v, ok)
	}
	if v, ok := got.GetByte(VarAFKStatus); !ok || v != 1 {
		t.Fatalf("AFKStatus = %v, %v", v, ok)
	}
	if v, ok := got.GetData(VarTelegramMessage); !ok || len(v) != 3 {
		t.Fatalf("Message = %v, %v", v, ok)
	}
}

func TestGetWrongTypeIsAbsent(t *testing.T) {
	p := NewPacket(PacketCitizenChange)
	p.AddUint(VarCitizenNumber, 7)

	if _, ok := p.GetString(VarCitizenNumber); ok {
		t.Fatal("GetString should fail for a uint var")
	}
	if _, ok := p.GetUint(VarCitizenName); ok {
		t.Fatal("GetUint should fail for a missing var")
	}
}

func TestUnknownVarIDPreservedOnDecode(t *testing.T) {
	p := NewPacket(PacketUserList)
	unknown := VarID(9999)
	p.AddUint(unknown, 5)

	wire, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v, ok := got.GetUint(unknown); !ok || v != 5 {
		t.Fatalf("unknown var not preserved: %v %v", v, ok)
	}
}

func TestDecodeTruncatedErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2}); err == nil {
		t.Fatal("expected error decoding too-short packet")
	}
}
