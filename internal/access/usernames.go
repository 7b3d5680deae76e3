package access

import (
	"fmt"
	"math/rand"
)

var usernameAdjectives = []string{
	"Swift", "Silent", "Crimson", "Golden", "Frozen", "Hidden", "Lucky",
	"Mighty", "Nimble", "Rapid", "Shadow", "Stellar", "Storm", "Vivid",
	"Wild", "Brave", "Clever", "Cosmic", "Daring", "Electric",
}

var usernameNouns = []string{
	"Falcon", "Tiger", "Wolf", "Raven", "Panther", "Viper", "Eagle",
	"Lynx", "Otter", "Badger", "Cobra", "Drake", "Fox", "Hawk",
	"Jaguar", "Kraken", "Mantis", "Orca", "Phoenix", "Sparrow",
}

// generateUsername returns a random display name of the form
// AdjectiveNoun1234. Uniqueness is enforced by the store; callers retry on
// conflict.
func generateUsername() string {
	adj := usernameAdjectives[rand.Intn(len(usernameAdjectives))]
	noun := usernameNouns[rand.Intn(len(usernameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rand.Intn(9999)+1)
}
