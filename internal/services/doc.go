// Package services defines the error taxonomy shared by the gateway and the
// pipeline, plus context annotations used for structured logging.
package services
