package oob

// Telnet protocol constants used by OOB negotiations.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	SE   byte = 240 // Subnegotiation End

	TeloptGMCP byte = 201
)

// Option is a three-byte telnet negotiation such as IAC DO GMCP.
type Option struct {
	Cmd byte
	Opt byte
}

// Split separates a line read from a telnet client into plain text,
// option negotiations and subnegotiation payloads (the bytes between
// IAC SB <opt> and IAC SE, option byte included). A doubled IAC is a
// literal 255 and stays in the text.
func Split(raw []byte) (text []byte, opts []Option, subs [][]byte) {
	text = make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != IAC || i+1 >= len(raw) {
			text = append(text, raw[i])
			continue
		}
		switch cmd := raw[i+1]; cmd {
		case IAC:
			text = append(text, IAC)
			i++
		case DO, DONT, WILL, WONT:
			if i+2 < len(raw) {
				opts = append(opts, Option{Cmd: cmd, Opt: raw[i+2]})
			}
			i += 2
		case SB:
			end := i + 2
			for end+1 < len(raw) && !(raw[end] == IAC && raw[end+1] == SE) {
				end++
			}
			if i+2 < len(raw) {
				subs = append(subs, append([]byte(nil), raw[i+2:end]...))
			}
			i = end + 1
		default:
			i++
		}
	}
	return text, opts, subs
}
