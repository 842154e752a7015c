package main

import "strings"

// multiValueFlags take several space separated values.
var multiValueFlags = []string{"-f", "--file", "-d", "--did"}

// expandMultiValue rewrites "-f a b c" as "-f a -f b -f c" for each flag in
// multi, so a flag can take several space separated values. Expansion stops
// at the next token that looks like a flag.
func expandMultiValue(args []string, multi ...string) []string {
	isMulti := make(map[string]bool, len(multi))
	for _, m := range multi {
		isMulti[m] = true
	}
	out := make([]string, 0, len(args))
	current := ""
	for _, a := range args {
		switch {
		case a == "--":
			current = ""
			out = append(out, a)
		case strings.HasPrefix(a, "-") && a != "-":
			current = ""
			if isMulti[a] {
				current = a
			}
			out = append(out, a)
		case current != "" && out[len(out)-1] != current:
			out = append(out, current, a)
		default:
			out = append(out, a)
		}
	}
	return out
}
