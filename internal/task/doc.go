// Package task provides background processing for session upkeep.
//
// The pipeline has three stages: the stale-session sweeper periodically finds
// in-progress sessions past the inactivity timeout and emits finalize-request
// events; the event handler turns those events into tasks on the queue; the
// worker pool drains the queue and executes them. Sessions themselves are the
// durable state - after a restart the first sweep re-discovers anything that
// was pending, so tasks need no persistence of their own.
package task
