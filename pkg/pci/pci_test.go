package pci

import (
	"os"
	"path/filepath"
	"testing"
)

// writeSysfsDevice lays out a fake sysfs function directory.
func writeSysfsDevice(t *testing.T, root, name, vendor, device string) {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for attr, content := range map[string]string{
		"vendor": vendor + "\n",
		"device": device + "\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, attr), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile %s: %v", attr, err)
		}
	}
	// 256 bytes of config space.
	if err := os.WriteFile(filepath.Join(dir, "config"), make([]byte, 256), 0644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    Addr
		wantErr bool
	}{
		{"0000:00:00.0", Addr{0, 0, 0, 0}, false},
		{"0000:c0:00.0", Addr{0, 0xC0, 0, 0}, false},
		{"0001:3a:1f.7", Addr{1, 0x3A, 0x1F, 7}, false},
		{"c0:00.0", Addr{}, true},
		{"not-a-device", Addr{}, true},
	}

	for _, tt := range tests {
		got, err := ParseAddr(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAddr(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAddr(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAddr(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("Addr.String() = %q, want %q", got.String(), tt.in)
		}
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeSysfsDevice(t, root, "0000:00:00.0", "0x1022", "0x1480")
	writeSysfsDevice(t, root, "0000:20:00.0", "0x1022", "0x1480")
	writeSysfsDevice(t, root, "0000:01:00.0", "0x8086", "0x1521") // other vendor
	writeSysfsDevice(t, root, "0000:02:00.0", "0x1022", "0x1481") // other device

	devs, err := Enumerate(root, 0x1022, 0x1480)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	defer CloseAll(devs)

	if len(devs) != 2 {
		t.Fatalf("Enumerate found %d devices, want 2", len(devs))
	}
	for _, d := range devs {
		if d.Vendor() != 0x1022 || d.DeviceID() != 0x1480 {
			t.Errorf("device %s: id %04x:%04x, want 1022:1480", d.Address(), d.Vendor(), d.DeviceID())
		}
	}
	if devs[0].Bus() != 0x00 || devs[1].Bus() != 0x20 {
		t.Errorf("bus numbers = 0x%02X, 0x%02X; want 0x00, 0x20", devs[0].Bus(), devs[1].Bus())
	}
}

func TestEnumerateMissingRoot(t *testing.T) {
	if _, err := Enumerate(filepath.Join(t.TempDir(), "absent"), 0x1022, 0x1480); err == nil {
		t.Error("expected error for missing sysfs root")
	}
}

func TestConfigReadWrite(t *testing.T) {
	root := t.TempDir()
	writeSysfsDevice(t, root, "0000:00:00.0", "0x1022", "0x1480")

	d, err := Open(root, Addr{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.WriteConfig32(0x60, 0x13B10044); err != nil {
		t.Fatalf("WriteConfig32: %v", err)
	}
	got, err := d.ReadConfig32(0x60)
	if err != nil {
		t.Fatalf("ReadConfig32: %v", err)
	}
	if got != 0x13B10044 {
		t.Errorf("ReadConfig32 = 0x%08X, want 0x13B10044", got)
	}

	// Little-endian layout on disk.
	raw, err := os.ReadFile(filepath.Join(root, "0000:00:00.0", "config"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if raw[0x60] != 0x44 || raw[0x61] != 0x00 || raw[0x62] != 0xB1 || raw[0x63] != 0x13 {
		t.Errorf("config bytes = % X, want 44 00 B1 13", raw[0x60:0x64])
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(t.TempDir(), Addr{Bus: 0x40}); err == nil {
		t.Error("expected error for missing device directory")
	}
}
