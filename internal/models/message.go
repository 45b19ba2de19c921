package models

// MailMessage is the slice of an IMAP message the relay cares about.
// UIDs are assigned by the server and increase monotonically within a folder.
type MailMessage struct {
	UID     uint32
	Subject string
	From    string
	Raw     []byte
}

// PaymentFields holds the values extracted from an email body.
// A nil field means the body carried no recognizable value for it.
type PaymentFields struct {
	Name   *string
	Email  *string
	Amount *string
}
