// Package sms defines the contract for delivering text messages to phones.
//
// Use cases depend on the SMS interface and Message payload; provider
// specific HTTP gateways and the dry-run logger live in this package.
package sms
