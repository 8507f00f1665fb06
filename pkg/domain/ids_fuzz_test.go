package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseIDs checks that every typed ID parser agrees with the others and
// that accepted input survives a String round trip.
func FuzzParseIDs(f *testing.F) {
	for _, seed := range []string{
		"",
		"550e8400-e29b-41d4-a716-446655440000",
		"00000000-0000-0000-0000-000000000000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"not-a-uuid",
		"'; DROP TABLE form_instances;--",
		string([]byte{0x00, 0xff}),
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		userID, errUser := ParseUserID(input)
		_, errTemplate := ParseTemplateID(input)
		_, errInstance := ParseInstanceID(input)
		_, errDocument := ParseDocumentID(input)
		_, errBiometric := ParseBiometricID(input)
		_, errFile := ParseFileID(input)

		accepted := errUser == nil
		for _, err := range []error{errTemplate, errInstance, errDocument, errBiometric, errFile} {
			if (err == nil) != accepted {
				t.Fatalf("parsers disagree on %q", input)
			}
		}
		if !accepted {
			return
		}
		if userID.IsNil() {
			t.Fatalf("nil UUID accepted: %q", input)
		}
		again, err := ParseUserID(userID.String())
		if err != nil || again != userID {
			t.Fatalf("round trip changed %q", input)
		}
		if _, err := uuid.Parse(input); err != nil {
			t.Fatalf("accepted input uuid rejects: %q", input)
		}
	})
}
