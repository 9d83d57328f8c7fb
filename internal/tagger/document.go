package tagger

import "strings"

// documentTagName flattens a document label to its tag form: lower-cased
// with spaces removed, so "drivers license" becomes "driverslicense".
func documentTagName(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "")
}
