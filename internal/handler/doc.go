// Package handler implements the HTTP endpoints of the demo service.
// The greeting endpoint runs the unreliable greeter through the protector,
// so clients see either a real greeting or the fallback.
package handler
