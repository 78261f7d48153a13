// Command openclaw-gateway runs the JSON-RPC gateway: see cmd.Execute.
package main

import "github.com/openclaw/gateway/cmd"

func main() {
	cmd.Execute()
}
