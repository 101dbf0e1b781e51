// Package notification delivers account event notices (login pins, reset
// links, security alerts) through a pluggable notifier.
//
// Delivery is fire-and-forget relative to the triggering transaction: the
// account service schedules notices after commit and a failed delivery is
// logged, never surfaced to the caller.
package notification
