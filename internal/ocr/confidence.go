package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var reWord = regexp.MustCompile(`[\p{L}\p{N}]{2,}`)

// heuristicConfidence scores decoded text by how much of it looks like words.
func heuristicConfidence(txt string) float32 {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return 0
	}
	var letters, printable int
	for _, r := range txt {
		if unicode.IsSpace(r) {
			continue
		}
		printable++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	if printable == 0 {
		return 0
	}
	score := float32(0.2) // base
	score += 0.5 * float32(letters) / float32(printable)
	if len(reWord.FindAllString(txt, 4)) >= 3 {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights the engine's own score higher when it reported one.
func blendConfidence(engine, heuristic float32) float32 {
	var conf float32
	if engine > 0 {
		conf = 0.7*engine + 0.3*heuristic
	} else {
		conf = heuristic
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
