package server

import (
	"strings"
)

// ParseConnect parses a login-screen command into (command, user, password).
// Handles: "connect name password", "create name password" and a quoted
// name: connect "name" password.
func ParseConnect(msg string) (command, user, password string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", "", ""
	}

	parts := strings.SplitN(msg, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) < 2 {
		return command, "", ""
	}

	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return command, "", ""
	}

	if rest[0] == '"' {
		end := strings.Index(rest[1:], "\"")
		if end >= 0 {
			user = rest[1 : end+1]
			password = strings.TrimSpace(rest[end+2:])
			return
		}
	}

	parts = strings.SplitN(rest, " ", 2)
	user = parts[0]
	if len(parts) > 1 {
		password = strings.TrimSpace(parts[1])
	}
	return
}

// WelcomeText is the default welcome screen shown to new connections.
const WelcomeText = `
   ___                 _                       _     _
  / _ \_ __ __ _ _ __ | |____      _____  _ __| | __| |
 / /_\/ '__/ _' | '_ \| '_ \ \ /\ / / _ \| '__| |/ _' |
/ /_\\| | | (_| | |_) | | | \ V  V / (_) | |  | | (_| |
\____/|_|  \__,_| .__/|_| |_|\_/\_/ \___/|_|  |_|\__,_|
                |_|

 You will wake up in someone else's body. Look around.

 connect <name> <password>   log in
 create <name> <password>    make an account
 WHO                         who is online
 QUIT                        leave

`

// QuitText is shown when a session ends with QUIT.
const QuitText = "The world fades. Goodbye!"
