// Package gateway exposes the client-facing HTTP API: media upload with
// synchronous or detached pipeline execution, the per-task progress stream,
// the progress ingress used by stage processors, and the task listing.
package gateway
