package workspace

import (
	"fmt"
	"regexp"
	"strconv"
)

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// trailingNumber extracts the numeric suffix of s, if any.
func trailingNumber(s string) (int, bool) {
	m := trailingDigits.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextInvoiceSequence returns max(trailing sequence)+1 over numbers like
// "INV-2025-081", or fallback when none carry a sequence. The counter does
// not reset per year.
func NextInvoiceSequence(numbers []string, fallback int) int {
	best := 0
	for _, n := range numbers {
		if seq, ok := trailingNumber(n); ok && seq > best {
			best = seq
		}
	}
	if best == 0 {
		return fallback
	}
	return best + 1
}

// InvoiceNumber formats the human-facing number, e.g. INV-2025-081.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

// InvoiceID formats the record id, e.g. inv_2025_081.
func InvoiceID(year, seq int) string {
	return fmt.Sprintf("inv_%d_%03d", year, seq)
}

// NextID returns prefix followed by one plus the largest numeric suffix among
// ids; ids without a suffix count as zero.
func NextID(prefix string, ids []string) string {
	best := 0
	for _, id := range ids {
		if n, ok := trailingNumber(id); ok && n > best {
			best = n
		}
	}
	return prefix + strconv.Itoa(best+1)
}
