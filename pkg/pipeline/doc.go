// Package pipeline defines the minimal message-exchange contract the
// security interceptor operates on.
//
// An Exchange is one in-flight unit of work. Processors are chained; a
// processor either lets the exchange continue down the chain or attaches
// an error that halts it. This package deliberately models only that
// narrow "intercept, then continue-or-abort" surface - routing, exchange
// construction, and continuation scheduling belong to whatever pipeline
// engine hosts the interceptor.
package pipeline
