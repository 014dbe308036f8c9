package main

import "github.com/AdguardTeam/AdGuardContentBlocker/internal/cmd"

func main() {
	cmd.Main()
}
