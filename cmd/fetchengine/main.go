// Command fetchengine drives the admission pipeline from the shell: each
// argument is a URL to run through robots, rate-limiting, proxy escalation,
// and ban detection, reporting one outcome line per URL.
package main

import (
	cmd "github.com/titan-flow/fetchengine/internal/cli"
)

func main() {
	cmd.Execute()
}
