// Package membership mounts the membership engine on a chi router.
//
// Plans, member rows, family links, the transaction ledger and officer
// positions are exposed as JSON resources. Payment callbacks arrive either
// on POST /purchases or as Stripe checkout webhooks. The /admin routes run
// the daily sweep, the reminder pass and the bulk imports on demand.
package membership
