// Package otp generates numeric one-time passcodes.
//
// Codes are drawn uniformly from a fixed-width decimal range using
// crypto/rand so they can be delivered over SMS and typed back by a user.
package otp
