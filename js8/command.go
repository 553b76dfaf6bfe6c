package js8

import (
	"sort"
	"strings"
)

// Directed message commands recognized by JS8Call. A directed message has
// the form "DESTINATION COMMAND TEXT" on the air; the command keyword
// immediately follows the destination callsign or group designator.
const (
	CmdSNR          = "SNR"
	CmdSNRQuery     = "SNR?"
	CmdGrid         = "GRID"
	CmdGridQuery    = "GRID?"
	CmdHearing      = "HEARING"
	CmdHearingQuery = "HEARING?"
	CmdInfo         = "INFO"
	CmdInfoQuery    = "INFO?"
	CmdStatus       = "STATUS"
	CmdStatusQuery  = "STATUS?"
	CmdQuery        = "QUERY"
	CmdQueryMsgs    = "QUERY MSGS"
	CmdQueryCall    = "QUERY CALL"
	CmdMsg          = "MSG"
	CmdMsgTo        = "MSG TO:"
	CmdHeartbeat    = "HEARTBEAT"
	CmdAck          = "ACK"
	CmdCmd          = "CMD"

	// CmdRelay is the relay path separator joining intermediate callsigns,
	// as in "KT1RUN>OH8STN".
	CmdRelay = ">"

	// CmdQuerySuffix is appended to a callsign to query for it, as in
	// "QUERY CALL K1ABC?".
	CmdQuerySuffix = "?"
)

// commands holds every directed command keyword, sorted descending by
// length so that prefix matching never stops at a partial command
// (e.g. QUERY when the text starts with QUERY CALL).
var commands = func() []string {
	cmds := []string{
		CmdSNR, CmdSNRQuery,
		CmdGrid, CmdGridQuery,
		CmdHearing, CmdHearingQuery,
		CmdInfo, CmdInfoQuery,
		CmdStatus, CmdStatusQuery,
		CmdQuery, CmdQueryMsgs, CmdQueryCall,
		CmdMsg, CmdMsgTo,
		CmdHeartbeat,
		CmdAck,
		CmdCmd,
	}
	sort.Slice(cmds, func(i, j int) bool { return len(cmds[i]) > len(cmds[j]) })

	return cmds
}()

var commandSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(commands))
	for _, cmd := range commands {
		set[cmd] = struct{}{}
	}

	return set
}()

// autoreplyCommands are the commands JS8Call answers automatically on
// behalf of the operator. A station heard sending one of these has also
// heard the station it is replying to.
var autoreplyCommands = map[string]struct{}{
	CmdSNRQuery:     {},
	CmdGridQuery:    {},
	CmdHearingQuery: {},
	CmdInfoQuery:    {},
	CmdStatusQuery:  {},
	CmdQuery:        {},
	CmdQueryMsgs:    {},
	CmdQueryCall:    {},
}

// Commands returns all directed command keywords, sorted descending by
// length.
func Commands() []string {
	result := make([]string, len(commands))
	copy(result, commands)

	return result
}

// IsCommand returns true if cmd is a known directed command keyword.
func IsCommand(cmd string) bool {
	_, ok := commandSet[cmd]
	return ok
}

// IsAutoreplyCommand returns true if cmd triggers an automatic reply from
// the receiving station.
func IsAutoreplyCommand(cmd string) bool {
	_, ok := autoreplyCommands[cmd]
	return ok
}

// DetectCommand identifies a directed command at the start of message
// text. It returns the command and the remaining text with the command
// removed. The text is uppercased before matching since commands are
// transmitted uppercase.
//
// It returns ok == false when the text does not start with a known
// command.
func DetectCommand(text string) (cmd string, remainder string, ok bool) {
	text = strings.ToUpper(text)
	for _, c := range commands {
		if strings.HasPrefix(text, c) {
			return c, strings.TrimSpace(strings.TrimPrefix(text, c)), true
		}
	}

	return "", text, false
}
