package container

import "testing"

func TestLooksLikeXCOFF(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{"32-bit magic", []byte{0x01, 0xdf, 0, 0}, true},
		{"64-bit magic", []byte{0x01, 0xf7, 0, 0}, true},
		{"elf magic", []byte{0x7f, 'E', 'L', 'F'}, false},
		{"too short", []byte{0x01}, false},
		{"empty", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := LooksLikeXCOFF(c.data); got != c.want {
				t.Errorf("LooksLikeXCOFF(%v) = %v, want %v", c.data, got, c.want)
			}
		})
	}
}
