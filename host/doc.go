// Package host provides the environment primitives the sale components run
// against: a clock read once per operation, a bank that moves native value
// atomically, and a router that delivers encoded calls to addressable
// components.
package host
