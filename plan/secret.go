package plan

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var adjectives = []string{
	"crazy", "sunny", "happy", "wild", "quick", "witty", "jolly", "zany",
	"lazy", "sleepy", "dopey", "grumpy", "bashful", "sneezy", "curly",
}

var nouns = []string{
	"cat", "evening", "river", "breeze", "mountain", "ocean", "sun", "moon",
	"tree", "flower", "star", "space", "forest", "meadow", "rain", "snow",
	"wind",
}

// GenerateSecret produces a memorable credential: adjective + noun + four
// digits, e.g. "sunnyriver4821".
func GenerateSecret() string {
	var b strings.Builder
	b.WriteString(adjectives[randomIndex(len(adjectives))])
	b.WriteString(nouns[randomIndex(len(nouns))])
	for i := 0; i < 4; i++ {
		b.WriteByte(byte('0' + randomIndex(10)))
	}
	return b.String()
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand fails only when the platform entropy source is gone.
		return 0
	}
	return int(v.Int64())
}
