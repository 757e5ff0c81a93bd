// Package plancache provides membership.PlanCache implementations: an
// in-process LRU with expiry and a shared Redis cache. Plans change rarely
// and are read on every purchase, renewal and reminder.
package plancache
