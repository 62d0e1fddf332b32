// Package upload streams inbound files to disk under a byte ceiling with an
// atomic commit: content lands at destination only after a complete,
// size-checked write.
package upload
