// golearn grows trees from the global math/rand source; keep rand.Seed
// effective so a configured seed is honoured.
//go:debug randseednop=0

package main

import "github.com/KaramelBytes/propensity-cli/cmd"

func main() {
	cmd.Execute()
}
