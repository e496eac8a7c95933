package directory

import "testing"

func TestApplyChangesTouchSemantics(t *testing.T) {
	original := FriendRequestBlocked | ChatBlocked

	// Touching only AllBlocked: set it, leave everything else untouched.
	delta := AllBlocked | touchAllBlocked
	got := original.ApplyChanges(delta)

	if !got.Has(AllBlocked) {
		t.Fatal("AllBlocked should be set")
	}
	if !got.Has(FriendRequestBlocked) {
		t.Fatal("untouched FriendRequestBlocked should survive")
	}
	if !got.Has(ChatBlocked) {
		t.Fatal("untouched ChatBlocked should survive")
	}
}

func TestApplyChangesClearsWhenTouchedWithZeroValue(t *testing.T) {
	original := TelegramsBlocked
	delta := touchTelegramsBlocked // value bit 0 = clear
	got := original.ApplyChanges(delta)

	if got.Has(TelegramsBlocked) {
		t.Fatal("TelegramsBlocked should have been cleared")
	}
}

func TestApplyChangesIsNotXor(t *testing.T) {
	original := ChatBlocked
	delta := ChatBlocked | touchChatBlocked // set again, touched
	got := original.ApplyChanges(delta)

	// A plain xor would clear the bit; apply_changes must keep it set.
	if !got.Has(ChatBlocked) {
		t.Fatal("apply_changes must not behave like xor")
	}
}

func TestApplyChangesNoTouchIsNoOp(t *testing.T) {
	original := FriendRequestAllowed | StatusBlocked
	delta := ContactOptions(0)
	got := original.ApplyChanges(delta)

	if got != original {
		t.Fatalf("no-touch delta changed options: %v -> %v", original, got)
	}
}

func TestMutualRequiresBothDirectionsAccepted(t *testing.T) {
	if !Mutual(0, 0, true, true) {
		t.Fatal("two accepted edges should be mutual")
	}
	if Mutual(FriendRequestAllowed, 0, true, true) {
		t.Fatal("pending request should not be mutual")
	}
	if Mutual(0, 0, true, false) {
		t.Fatal("missing reverse edge should not be mutual")
	}
}
