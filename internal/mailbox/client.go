// Package mailbox polls the IMAP inbox for command emails. Messages are
// only marked seen after successful processing, so malformed mail stays
// unread for manual review.
package mailbox

import (
	"fmt"
	"strings"

	imap "github.com/BrianLeishman/go-imap"

	"invoicing_backend/platform/config"
)

// Message is one unread inbound email reduced to what the intake pipeline
// needs.
type Message struct {
	UID    int    `json:"uid"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// Client wraps the IMAP connection details. Each call dials a fresh
// connection; the poll interval is long enough that keeping one open buys
// nothing and costs reconnect handling.
type Client struct {
	cfg config.MailboxConfig
}

func NewClient(cfg config.MailboxConfig) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) dial() (*imap.Dialer, error) {
	dialer, err := imap.New(c.cfg.GetIMAPUsername(), c.cfg.GetIMAPPassword(),
		c.cfg.GetIMAPHost(), c.cfg.GetIMAPPort())
	if err != nil {
		return nil, fmt.Errorf("connect imap: %w", err)
	}
	if err := dialer.SelectFolder(c.cfg.GetIMAPFolder()); err != nil {
		dialer.Close()
		return nil, fmt.Errorf("select folder %s: %w", c.cfg.GetIMAPFolder(), err)
	}
	return dialer, nil
}

// FetchUnread returns the currently unread messages with their text bodies.
func (c *Client) FetchUnread() ([]Message, error) {
	dialer, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer dialer.Close()

	uids, err := dialer.GetUIDs("UNSEEN")
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	emails, err := dialer.GetEmails(uids...)
	if err != nil {
		return nil, fmt.Errorf("fetch emails: %w", err)
	}

	messages := make([]Message, 0, len(emails))
	for uid, msg := range emails {
		if msg == nil {
			continue
		}
		messages = append(messages, Message{
			UID:    uid,
			Sender: firstAddress(msg.From),
			Body:   messageBody(msg),
		})
	}
	return messages, nil
}

// MarkSeen flags one message as read.
func (c *Client) MarkSeen(uid int) error {
	dialer, err := c.dial()
	if err != nil {
		return err
	}
	defer dialer.Close()
	if err := dialer.MarkSeen(uid); err != nil {
		return fmt.Errorf("mark seen %d: %w", uid, err)
	}
	return nil
}

func firstAddress(addresses imap.EmailAddresses) string {
	for address := range addresses {
		return address
	}
	return ""
}

func messageBody(msg *imap.Email) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return text
	}
	return ExtractText(msg.HTML)
}
