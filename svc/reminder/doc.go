// Package reminder delivers "membership about to expire" emails.
//
// Dispatcher implements membership.Dispatcher: it looks the account up in a
// Directory, renders the message, sends it through a rate limited and
// circuit broken email.EmailSender and records it in an Outbox. Outbox.Clear
// implements membership.ReminderClearer, so a renewal removes pending
// reminders of the account.
package reminder
