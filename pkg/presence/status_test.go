package presence

import "testing"

// TestParseStatus validates the backend status mapping
func TestParseStatus(t *testing.T) {
	testCases := []struct {
		raw    string
		expect Status
	}{
		{"online", Online},
		{"ONLINE", Online},
		{" active ", Online},
		{"away", Away},
		{"idle", Away},
		{"busy", Busy},
		{"dnd", Busy},
		{"in_studio", Busy},
		{"offline", Offline},
		{"", Offline},
		{"launching-rocket", Offline},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			if got := ParseStatus(tc.raw); got != tc.expect {
				t.Errorf("ParseStatus(%q) = %v, expected %v", tc.raw, got, tc.expect)
			}
		})
	}
}

// TestStatusText validates the wire form round trip
func TestStatusText(t *testing.T) {
	for _, s := range []Status{Offline, Online, Away, Busy} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText failed: %v", err)
		}
		var back Status
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText failed: %v", err)
		}
		if back != s {
			t.Errorf("Expected %v after round trip, got %v", s, back)
		}
	}

	if Busy.Label() != "Busy" || Offline.Label() != "Offline" {
		t.Error("Unexpected status labels")
	}
}
