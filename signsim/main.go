// Command signsim runs the sign's scroll renderer against a terminal or a
// simulated HD44780, fed from an HTTP proxy route, a local file or MQTT.
package main

import (
	"os"

	"github.com/harveysanders/sidegrade/signsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
