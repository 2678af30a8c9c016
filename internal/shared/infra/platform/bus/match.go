package bus

import "strings"

// MatchRoutingKey replica el matching de un topic exchange:
// '*' sustituye exactamente una palabra y '#' cero o más.
func MatchRoutingKey(pattern, key string) bool {
	if pattern == key || pattern == "#" {
		return true
	}
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == "#" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(rest, key[i:]) {
					return true
				}
			}
			return false
		}
		if len(key) == 0 {
			return false
		}
		if head != "*" && head != key[0] {
			return false
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
