// Package host adapts the host CMS to the membership engine.
//
// PG works against the tables the host shares with memberkit: accounts and
// group_members. It implements membership.GroupManager,
// membership.GroupDirectory, membership.AccountDisabler and
// reminder.Directory. Nop only logs and is meant for local development.
package host
