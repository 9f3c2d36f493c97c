package cmn

import (
	"strings"
)

func Contains(s string, subststr string) bool {
	return strings.Contains(
		strings.ToLower(s),
		strings.ToLower(subststr),
	)
}

func IsInArray(a []string, s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// SplitN splits input into n space separated parts. Single quotes group
// words; the last part takes the rest of the line, unquoted. Missing parts are "".
func SplitN(input string, n int) []string {
	res := make([]string, n)
	rest := strings.TrimLeft(input, " ")

	for i := 0; i < n && rest != ""; i++ {
		if i == n-1 {
			last := strings.TrimSpace(rest)
			if len(last) >= 2 && last[0] == '\'' && last[len(last)-1] == '\'' {
				last = last[1 : len(last)-1]
			}
			res[i] = last
			break
		}

		if rest[0] == '\'' {
			end := strings.IndexByte(rest[1:], '\'')
			if end == -1 {
				res[i] = rest[1:]
				break
			}
			res[i] = rest[1 : end+1]
			rest = strings.TrimLeft(rest[end+2:], " ")
			continue
		}

		end := strings.IndexByte(rest, ' ')
		if end == -1 {
			res[i] = rest
			break
		}
		res[i] = rest[:end]
		rest = strings.TrimLeft(rest[end+1:], " ")
	}

	return res
}
