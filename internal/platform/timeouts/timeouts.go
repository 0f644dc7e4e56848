// Package timeouts holds the deadlines shared by phrase servers and clients.
package timeouts

import "time"

const (
	// PhraseDial bounds how long a client waits for the phrase service to
	// report SERVING.
	PhraseDial = 10 * time.Second
	// PhraseCall bounds one phrase RPC made on behalf of a tool call.
	PhraseCall = 10 * time.Second
	// HealthProbe bounds a single health check attempt.
	HealthProbe = time.Second
	// ReadHeader bounds request header reads on HTTP listeners.
	ReadHeader = 10 * time.Second
	// Shutdown bounds graceful shutdown of listeners and telemetry.
	Shutdown = 5 * time.Second
)
