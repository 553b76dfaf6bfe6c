// Package js8call manages a session with a running JS8Call modem over its
// TCP API. It builds on the protocol model provided by the js8 package and
// offers a high-level client for controlling the modem and reacting to
// received traffic.
//
// Key Features:
//   - Session Management: Establishes and supervises the TCP session,
//     including a liveness probe that detects a silent modem.
//   - Message Handling: Queues outgoing messages, paces transmissions
//     around the modem's half-duplex transmit state, and tracks each
//     directed send from QUEUED through SENT or FAILED.
//   - Local State: Mirrors the modem's reported state (frequencies,
//     callsign, grid, speed, text fields, activity tables) and offers
//     watch round-trips that request a value and wait for the response.
//   - Spots: Deduplicates and stores heard-station records with filtered
//     queries, per-station and per-group watches, and an optional sqlite
//     journal.
//   - Timing: Predicts the modem's transmit window transitions from
//     received traffic so applications can schedule around them.
//   - Callbacks: Registers handlers for incoming message types, directed
//     commands, spots, window transitions, inbox changes, and outgoing
//     status transitions. All callbacks run on their own goroutines.
//
// Session Establishment:
//   - Create a ConnectionConfig with NewConnectionConfig(), customizing it
//     with ConnOption functions.
//   - Use NewClient to create a client, then call Client.Open to connect.
//
// Usage Example:
//
//	func main() {
//	    cfg, err := js8call.NewConnectionConfig("127.0.0.1", 2442,
//	        js8call.WithWatchTimeout(3*time.Second),
//	        js8call.WithSpotCapacity(1000),
//	        // other options...
//	    )
//	    // ... handle error ...
//
//	    client, err := js8call.NewClient(ctx, cfg)
//	    // ... handle error ...
//	    defer client.Close()
//
//	    client.OnSpots(func(spots []*js8.Spot) {
//	        // ... react to heard stations ...
//	    })
//
//	    err = client.Open(true)
//	    // ... handle error ...
//
//	    msg, err := client.SendDirectedMessage("N0XYZ", "HELLO")
//	    // ... handle error ...
//	}
package js8call
