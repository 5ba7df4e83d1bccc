package oui

import "testing"

func TestLoadEmbedded(t *testing.T) {
	db, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	if got := db.Vendor("B8:27:EB:12:34:56"); got != "Raspberry Pi Foundation" {
		t.Fatalf("unexpected vendor %q", got)
	}
}

func TestVendorNormalizesSeparatorsAndCase(t *testing.T) {
	db, err := Load([]byte(`{"f8-ff-c2": "Apple, Inc."}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, mac := range []string{
		"F8:FF:C2:00:11:22",
		"f8-ff-c2-00-11-22",
		"f8ff.c200.1122",
		" F8FFC2001122 ",
	} {
		if got := db.Vendor(mac); got != "Apple, Inc." {
			t.Fatalf("Vendor(%q) = %q", mac, got)
		}
	}
}

func TestVendorUnknown(t *testing.T) {
	db, err := Load([]byte(`{}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Vendor("00:11:22:33:44:55"); got != "" {
		t.Fatalf("expected empty vendor, got %q", got)
	}
	var nilDB *DB
	if got := nilDB.Vendor("00:11:22:33:44:55"); got != "" {
		t.Fatalf("expected empty vendor on nil db, got %q", got)
	}
}
