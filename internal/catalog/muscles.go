package catalog

import "strings"

// muscleKeywords maps free-text goal phrases to muscle groups. Order
// matters, it fixes the priority of the extracted groups.
var muscleKeywords = []struct {
	muscle   string
	keywords []string
}{
	{"chest", []string{"chest", "pec", "bench", "push-up", "pushup"}},
	{"back", []string{"back", "lat", "pull-up", "pullup", "row", "deadlift", "posture"}},
	{"legs", []string{"leg", "squat", "quad", "hamstring", "glute", "thigh", "calf", "lunge"}},
	{"shoulders", []string{"shoulder", "delt", "overhead"}},
	{"arms", []string{"arm", "bicep", "tricep", "curl", "grip"}},
	{"core", []string{"core", "abs", "ab", "plank", "stomach", "six pack", "obliques"}},
	{"full_body", []string{"full body", "whole body", "general", "overall", "conditioning", "lose weight", "fat loss", "endurance"}},
}

// DefaultFocus is the muscle group used when a goal names nothing specific.
const DefaultFocus = "full_body"

// ExtractMuscles pulls muscle groups out of a free-text fitness goal.
// Matching is case-insensitive and word-based, each group is reported at
// most once, and the result preserves the keyword table's priority order.
// A goal that names nothing yields [DefaultFocus].
func ExtractMuscles(goal string) []string {
	words := tokenize(goal)
	var muscles []string
	for _, entry := range muscleKeywords {
		for _, keyword := range entry.keywords {
			if matches(words, goal, keyword) {
				muscles = append(muscles, entry.muscle)
				break
			}
		}
	}
	if len(muscles) == 0 {
		return []string{DefaultFocus}
	}
	return muscles
}

func tokenize(goal string) map[string]bool {
	words := map[string]bool{}
	for _, word := range strings.FieldsFunc(strings.ToLower(goal), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '-'
	}) {
		words[word] = true
		words[strings.TrimSuffix(word, "s")] = true
	}
	return words
}

func matches(words map[string]bool, goal, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(strings.ToLower(goal), keyword)
	}
	return words[keyword]
}
