// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"strings"
	"testing"
)

func TestParseMailSettings(t *testing.T) {
	cases := []struct {
		in  string
		err bool
	}{
		{"smtp.example.com 587 user pass from@example.com to@example.com\n", false},
		{"smtp.example.com\n587\nuser\npass\nfrom@example.com\nto@example.com", false},
		{"smtp.example.com 587 user pass from@example.com", true},
		{"", true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			m, err := ParseMailSettings(strings.NewReader(c.in))
			if c.err {
				if err == nil {
					t.Errorf("Expected an error, got %+v", m)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if m.Server != "smtp.example.com" || m.Port != "587" || m.To != "to@example.com" {
				t.Errorf("Settings parsed incorrectly: %+v", m)
			}
		})
	}
}

func TestMailMessage(t *testing.T) {
	m := MailSettings{From: "from@example.com", To: "to@example.com"}
	msg := string(m.Message("Error with dataset", "it broke"))
	for _, s := range []string{"To: to@example.com\r\n", "From: from@example.com\r\n", "Subject: [wordbin] Error with dataset\r\n", "\r\n\r\nit broke"} {
		if !strings.Contains(msg, s) {
			t.Errorf("Message does not contain %q:\n%s", s, msg)
		}
	}
}
