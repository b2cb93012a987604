package version

import (
	"testing"
)

func TestLoadManifests(t *testing.T) {
	tests := []struct {
		version int
		wantMax uint32
	}{
		{1, 17},
		{2, 18},
		{3, 20},
	}

	for _, tt := range tests {
		m, err := Load(tt.version)
		if err != nil {
			t.Fatalf("Load(%d): %v", tt.version, err)
		}
		if m.Version != tt.version {
			t.Errorf("manifest version = %d, want %d", m.Version, tt.version)
		}
		if m.MaxMessageID != tt.wantMax {
			t.Errorf("version %d: MaxMessageID = %d, want %d", tt.version, m.MaxMessageID, tt.wantMax)
		}
		if len(m.Messages) == 0 {
			t.Errorf("version %d: no messages listed", tt.version)
		}
	}
}

func TestLoadUnknownVersion(t *testing.T) {
	for _, v := range []int{0, 4, -1, 99} {
		if _, err := Load(v); err == nil {
			t.Errorf("Load(%d): expected error", v)
		}
	}
}

func TestAvailable(t *testing.T) {
	versions, err := Available()
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	want := []int{1, 2, 3}
	if len(versions) != len(want) {
		t.Fatalf("Available = %v, want %v", versions, want)
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("Available[%d] = %d, want %d", i, versions[i], want[i])
		}
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		version int
		msgID   uint32
		want    bool
	}{
		{1, 1, true},
		{1, 17, true},
		{1, 18, false},
		{2, 18, true},
		{2, 20, false},
		{3, 20, true},
		{3, 21, false},
		{0, 1, false},  // unknown version supports nothing
		{99, 1, false}, // unknown version supports nothing
	}

	for _, tt := range tests {
		if got := Supported(tt.version, tt.msgID); got != tt.want {
			t.Errorf("Supported(%d, %d) = %v, want %v", tt.version, tt.msgID, got, tt.want)
		}
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		reported int
		want     int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, Current},  // newer firmware narrows to library max
		{17, Current}, // far-future firmware
		{0, 0},        // inert firmware: nothing supported
	}

	for _, tt := range tests {
		if got := Negotiate(tt.reported); got != tt.want {
			t.Errorf("Negotiate(%d) = %d, want %d", tt.reported, got, tt.want)
		}
	}
}

func TestMessageName(t *testing.T) {
	m, err := Load(3)
	if err != nil {
		t.Fatalf("Load(3): %v", err)
	}

	name, ok := m.MessageName(1)
	if !ok || name != "TestMessage" {
		t.Errorf("MessageName(1) = %q, %v; want TestMessage, true", name, ok)
	}
	if name, ok := m.MessageName(20); !ok || name != "GetDDRBandwidth" {
		t.Errorf("MessageName(20) = %q, %v; want GetDDRBandwidth, true", name, ok)
	}

	// 19 is a hole in the message table.
	if _, ok := m.MessageName(19); ok {
		t.Error("MessageName(19) should not resolve")
	}

	// But id 19 is still within the version-3 ceiling, matching how
	// firmware treats the range.
	if !Supported(3, 19) {
		t.Error("Supported(3, 19) = false, want true (id below ceiling)")
	}
}
