package snapshot

import "testing"

func TestLossyDecodeName(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ascii", []byte("bytes_sent"), "bytes_sent"},
		{"valid utf8", []byte("métrique"), "métrique"},
		{"empty", []byte{}, ""},
		{"lone continuation byte", []byte{'a', 0x80, 'b'}, "a�b"},
		{"one replacement per ill-formed byte", []byte{0xff, 0xfe, 0xfd}, "���"},
		{"truncated two byte sequence", []byte{0xc2}, "�"},
		{"truncated three byte sequence at end", []byte{'x', 0xe2, 0x82}, "x�"},
		{"truncated four byte sequence at end", []byte{0xf0, 0x9f, 0x98}, "�"},
		{"interrupted sequence", []byte{0xe2, 0x82, '('}, "�("},
		{"surrogate encoding", []byte{0xed, 0xa0, 0x80}, "���"},
		{"overlong encoding", []byte{0xc0, 0xaf}, "��"},
		{"literal replacement char survives", []byte("a�b"), "a�b"},
	}

	for _, tt := range tests {
		if got := LossyDecodeName(tt.input); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, got)
		}
	}
}

func TestLossyDecodeKeepsMangledNamesDistinct(t *testing.T) {
	a := LossyDecodeName([]byte{0xff})
	b := LossyDecodeName([]byte{0xff, 0xfe})

	if a == b {
		t.Errorf("distinct mangled names decoded to the same key %q", a)
	}
	if a != "�" || b != "��" {
		t.Errorf("expected %q and %q, got %q and %q", "�", "��", a, b)
	}
}
