// Package notify delivers verification codes by email (SMTP through gomail)
// and SMS (an HTTP form-post gateway). Both senders have a dry-run mode that
// only logs, for local development.
package notify
