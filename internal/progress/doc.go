// Package progress carries task progress events from the pipeline and from
// stage processors to a live event stream. Each task owns one unbounded FIFO
// queue with a single assumed consumer.
package progress
