// Package dispatch invokes stage processors over their HTTP JSON contract
// and classifies every failure as timeout, HTTP error, or unreachable. It
// performs no retries: retry policy is a deployment decision, not inherited
// behavior.
package dispatch
