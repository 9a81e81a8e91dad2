package domain

import (
	"strings"
	"testing"
)

// FuzzParseContestID checks that parsing never panics and that accepted ids
// are stable under a second parse and never contain the key separator.
func FuzzParseContestID(f *testing.F) {
	f.Add("")
	f.Add("summer-2026")
	f.Add("CONTEST#x")
	f.Add("'; DROP TABLE entries;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseContestID(input)
		if err != nil {
			return
		}
		if strings.Contains(string(id), "#") {
			t.Errorf("accepted id with separator: %q", id)
		}
		again, err := ParseContestID(string(id))
		if err != nil || again != id {
			t.Errorf("accepted id failed round trip: %q", id)
		}
	})
}
