package eaf

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier namespaces.
const (
	NamespaceTimeSlot   = "ts"
	NamespaceAnnotation = "a"
)

// Namespaces lists the identifier namespaces in renumbering order.
var Namespaces = []string{NamespaceTimeSlot, NamespaceAnnotation}

// ParseID returns the numeric suffix of id in namespace ns.
func ParseID(ns, id string) (int, error) {
	digits, ok := strings.CutPrefix(id, ns)
	if !ok || digits == "" {
		return 0, fmt.Errorf("identifier %q is not of the form %s<integer>", id, ns)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("identifier %q is not of the form %s<integer>", id, ns)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("identifier %q: %w", id, err)
	}
	return n, nil
}

// FormatID builds the identifier with suffix n in namespace ns.
func FormatID(ns string, n int) string {
	return ns + strconv.Itoa(n)
}
