// Package application decides whether an account has completed the
// membership application. Renewals are refused until it has.
//
// Three providers exist: None accepts everyone, Forms stores submitted
// answers in application_forms and Profile requires a set of host profile
// fields in user_profiles. New picks one from Config.
package application
