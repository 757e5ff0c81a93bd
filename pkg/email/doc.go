// Package email sends transactional mail.
//
// EmailSender has two implementations: a Postmark client for production and
// DevSender, which writes messages to disk. New picks one from Config.
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "member@example.com",
//		Subject:  "Your membership expires soon",
//		BodyHTML: body,
//	})
package email
