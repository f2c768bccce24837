// Package local implements an in-process session engine. Identity, friend
// list and the session document live in the bot's session storage; the
// engine validates server info the way a remote service would and asks
// for a restart after repeated update failures.
package local
