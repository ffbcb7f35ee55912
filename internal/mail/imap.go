// File: internal/mail/imap.go
package mail

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// imapMailbox adapts an IMAP connection to the Mailbox interface.
type imapMailbox struct {
	client *imapclient.Client
}

var _ Mailbox = (*imapMailbox)(nil)

// DialIMAP opens a TLS connection, authenticates, and selects INBOX.
func DialIMAP(ctx context.Context, addr, username, password string) (Mailbox, error) {
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if err := client.Login(username, password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("mailbox login failed: %w", err)
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	return &imapMailbox{client: client}, nil
}

// SearchRecent finds messages matching the sender and subject filters and
// fetches the newest max of them, newest first.
func (m *imapMailbox) SearchRecent(sender, subject string, max int) ([][]byte, error) {
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: sender},
			{Key: "Subject", Value: subject},
		},
	}

	searchData, err := m.client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("inbox search failed: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		return nil, nil
	}
	if len(seqNums) > max {
		seqNums = seqNums[len(seqNums)-max:]
	}

	bodySection := &imap.FetchItemBodySection{}
	fetched, err := m.client.Fetch(imap.SeqSetNum(seqNums...), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("message fetch failed: %w", err)
	}

	// Servers return messages in sequence order; reverse to newest first.
	messages := make([][]byte, 0, len(fetched))
	for i := len(fetched) - 1; i >= 0; i-- {
		if raw := fetched[i].FindBodySection(bodySection); raw != nil {
			messages = append(messages, raw)
		}
	}
	return messages, nil
}

// Close logs out and tears down the connection.
func (m *imapMailbox) Close() error {
	// Best effort: a failed LOGOUT still ends with a closed connection.
	_ = m.client.Logout().Wait()
	return m.client.Close()
}
