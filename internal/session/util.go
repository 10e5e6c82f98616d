package session

import "strconv"

func itoa(n int) string       { return strconv.Itoa(n) }
func itoa64(n int64) string   { return strconv.FormatInt(n, 10) }
func atoi(s string) (int, error) { return strconv.Atoi(s) }
func atob(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
