package domain

import "testing"

func TestAddressOf(t *testing.T) {
	tests := map[string]string{
		"":                              "",
		"ann@example.com":               "ann@example.com",
		"Ann <ANN@Example.com>":         "ann@example.com",
		`"Doe, Ann" <ann@example.com>`:  "ann@example.com",
		"broken name <ann@example.com": "broken name <ann@example.com",
		"Ann Smith <ann@example.com> x": "ann@example.com",
	}
	for in, want := range tests {
		if got := AddressOf(in); got != want {
			t.Errorf("AddressOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMailboxIsSelf(t *testing.T) {
	m := NewMailbox(" Me@Example.com ", " Me ")
	if m.Address != "me@example.com" || m.DisplayName != "Me" {
		t.Fatalf("unexpected mailbox %+v", m)
	}
	if !m.IsSelf("Me <me@example.com>") || !m.IsSelf("ME@EXAMPLE.COM") {
		t.Fatal("expected own address to match")
	}
	if m.IsSelf("other@example.com") || m.IsSelf("") {
		t.Fatal("unexpected self match")
	}
	if NewMailbox("", "").IsSelf("") {
		t.Fatal("an empty mailbox must not match anything")
	}

	f := m.Formatted()
	if f.Address != "me@example.com" || f.Name != "Me" {
		t.Fatalf("unexpected formatted address %+v", f)
	}
}
