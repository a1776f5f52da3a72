package clip

import "strings"

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isPaid(status string) bool {
	switch strings.ToLower(status) {
	case "paid", "approved":
		return true
	}
	return false
}
