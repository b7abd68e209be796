package gateway

// SMSSender delivers a text message to an E.164 phone number. Failures are
// returned as opaque provider errors; the dispatcher classifies them by
// substring matching.
type SMSSender interface {
	SendSMS(number, body string) error
}

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(address, subject, body string) error
}
