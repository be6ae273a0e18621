package guess

import "github.com/John-Robertt/subfetch/internal/textnorm"

// 同一批 release 常以不同组名出现；组内互为等价。
var equivalentGroups = [][]string{
	{"LOL", "DIMENSION"},
	{"ASAP", "IMMERSE", "FLEET"},
	{"AVS", "SVA"},
}

// EquivalentGroups 返回 group 的等价组名集合（总是包含 group 自身，且排在首位）。
//
// 入参会先经 textnorm.NormalizeReleaseGroup；空串返回 nil。
func EquivalentGroups(group string) []string {
	g := textnorm.NormalizeReleaseGroup(group)
	if g == "" {
		return nil
	}
	out := []string{g}
	for _, set := range equivalentGroups {
		if !contains(set, g) {
			continue
		}
		for _, alias := range set {
			if alias != g {
				out = append(out, alias)
			}
		}
	}
	return out
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
