// Package notify delivers one message to one directory contact.
//
// The notifier is a narrow collaborator: the outreach core hands it an
// authenticated session, a contact, and the subject/body, and gets back
// success or a failure with a reason. The core does not classify
// failures further - any send failure is per-candidate, recorded in the
// ledger as failed, and never aborts the run.
package notify
