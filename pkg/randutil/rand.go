// Package randutil implements random utilities.
package randutil

import (
	"encoding/hex"
	"math/rand"
)

const ll = "0123456789abcdefghijklmnopqrstuvwxyz"

// String returns a human-readable random string with a word prefix,
// truncated at n characters.
func String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ll[rand.Intn(len(ll))]
	}

	pfx := randoms[rand.Intn(len(randoms))]
	s := pfx + string(b)
	if len(s) > n {
		s = s[:n]
	}

	return s
}

// Bytes returns random bytes in the String character set.
func Bytes(n int) []byte {
	return []byte(String(n))
}

// Hex hex-encodes random bytes; same output shape as "openssl rand -hex".
func Hex(n int) string {
	return hex.EncodeToString(Bytes(n))
}

var randoms = []string{
	"autumn",
	"sun",
	"splendid",
	"sunny",
	"original",
	"dream",
	"whole",
	"flow",
	"cherry",
	"grand",
	"tree",
	"frost",
	"morning",
	"sparkling",
	"wandering",
	"summertime",
	"butterfly",
	"green",
	"river",
	"breeze",
	"hiking",
	"proud",
	"great",
	"floral",
	"dune",
	"modern",
	"delight",
	"lively",
	"waterfall",
	"flower",
	"atlas",
	"grass",
	"haze",
	"glacial",
	"mountain",
	"snowflake",
	"misty",
	"summer",
	"good",
	"icy",
	"coffee",
	"spring",
	"twilight",
	"blue",
	"coral",
	"galaxy",
	"wind",
	"watermelon",
	"sea",
	"ocean",
	"sunrise",
	"tropical",
	"sunset",
	"dynamic",
	"forest",
	"paddle",
	"lotus",
	"cylinder",
	"vortex",
	"laminar",
	"darcy",
	"cloud",
	"sound",
	"sky",
	"surf",
	"island",
	"water",
	"wildflower",
	"wave",
	"amber",
	"frosty",
	"paper",
	"star",
	"onion",
	"linux",
	"hawaii",
	"otter",
}
