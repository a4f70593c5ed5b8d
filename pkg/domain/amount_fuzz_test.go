//go:build go1.18

package domain

import "testing"

// FuzzParseAmount checks that parsing never panics and that accepted values round-trip.
func FuzzParseAmount(f *testing.F) {
	f.Add("")
	f.Add("0")
	f.Add("100")
	f.Add("-5")
	f.Add("0x10")
	f.Add("99999999999999999999999999999999999999999999999999999999999999999999999999999999")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}
		again, err := ParseAmount(a.String())
		if err != nil {
			t.Fatalf("round trip of %q failed: %v", a.String(), err)
		}
		if !again.Equal(a) {
			t.Fatalf("round trip changed value: %s != %s", again, a)
		}
	})
}
