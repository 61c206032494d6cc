// Package game implements the per-device guessing game played over MQTT.
//
// Each connected device owns one Session. The Engine drives it through
// challenge issuance, sequence-correlated responses, scoring and the
// game-over / auto-restart cycle:
//
//	Idle → AwaitingResponse → AwaitingResponse (next round or resend)
//	                        → GameOver → (settle) game-over sent → (restart delay) → AwaitingResponse
//	any state → Terminated (disconnect)
//
// Every operation on a session, including timer callbacks, runs under that
// session's mutex, so messages for one device are applied one at a time while
// different devices proceed in parallel. Outbound messages go through a
// non-blocking Publisher; the engine never waits on the network.
//
// Observers receive an Event for every transition and must not block.
package game
