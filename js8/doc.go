// Package js8 provides the message model and wire codec for the JS8Call
// TCP API, a line-oriented JSON protocol exposed by the JS8Call
// application on its local control socket.
//
// Each API frame is a UTF-8 text line holding an object with "type",
// "value", and "params" keys. The package defines constants for every
// known message type, categorized by direction:
//   - Outgoing types request state (RX.GET_TEXT, STATION.GET_CALLSIGN, ...),
//     change settings (MODE.SET_SPEED, RIG.SET_FREQ, ...), or transmit
//     text over the air (TX.SEND_MESSAGE).
//   - Incoming types report state changes (RIG.FREQ, STATION.STATUS, ...),
//     received traffic (RX.DIRECTED, RX.SPOT), and transmit progress
//     (TX.TEXT, TX.FRAME).
//
// Message is the unit of exchange. Incoming messages are produced by
// DecodeMessage, which derives common fields (origin, destination,
// command, grid, SNR, frequencies) from the free-form params payload.
// Outgoing messages are produced by the NewMessage constructors and
// serialized with Encode.
//
// The package also defines the directed-command vocabulary (SNR?, GRID,
// QUERY CALL, ...), the modem speed settings with their transmit window
// durations, and the Spot record derived from heard stations.
package js8
