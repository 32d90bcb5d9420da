// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
)

// MailSettings are the details needed to send notification emails.
// They are read from a dotfile on the host rather than compiled in,
// so they stay private.
type MailSettings struct {
	Server, Port, User, Pass, From, To string
}

// MailSettingsPath is where GetMailSettings looks for settings
func MailSettingsPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "wordbin", "mailsettings")
}

// ParseMailSettings reads the six whitespace separated fields of a
// mail settings file: server, port, user, password, from and to.
func ParseMailSettings(r io.Reader) (MailSettings, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return MailSettings{}, fmt.Errorf("Error reading mailsettings: %v", err)
	}
	f := strings.Fields(string(b))
	if len(f) != 6 {
		return MailSettings{}, fmt.Errorf("Error parsing mailsettings, need %d fields, got %d", 6, len(f))
	}
	return MailSettings{f[0], f[1], f[2], f[3], f[4], f[5]}, nil
}

// GetMailSettings reads mail settings from MailSettingsPath
func GetMailSettings() (MailSettings, error) {
	p := MailSettingsPath()
	f, err := os.Open(p)
	if err != nil {
		return MailSettings{}, fmt.Errorf("Error reading mailsettings from %s: %v", p, err)
	}
	defer f.Close()
	return ParseMailSettings(f)
}

// Message formats an email with the given subject and body
func (m MailSettings) Message(subject string, body string) []byte {
	return []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: [wordbin] %s\r\n\r\n%s\r\n",
		m.To, m.From, subject, body))
}

// Send emails a message using the settings
func (m MailSettings) Send(subject string, body string) error {
	host := fmt.Sprintf("%s:%s", m.Server, m.Port)
	auth := smtp.PlainAuth("", m.User, m.Pass, m.Server)
	return smtp.SendMail(host, auth, m.From, []string{m.To}, m.Message(subject, body))
}
