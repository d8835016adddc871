package ingest

import (
	"regexp"
	"strings"
	"time"
)

const (
	isoLayout    = "2006-01-02"
	nationalSize = 11
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDate accepts DD/MM/YYYY (day and month may have one digit) or YYYY-MM-DD.
// Anything else, including dates that do not exist on the calendar, is rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isoDate.MatchString(s) {
		t, err := time.Parse(isoLayout, s)
		return t, err == nil
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, month, year := parts[0], parts[1], parts[2]
	if !digitsOfLen(day, 1, 2) || !digitsOfLen(month, 1, 2) || !digitsOfLen(year, 4, 4) {
		return time.Time{}, false
	}
	t, err := time.Parse(isoLayout, year+"-"+leftPad2(month)+"-"+leftPad2(day))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate converts a date to YYYY-MM-DD. ok is false when the input is not a date,
// which callers store as null.
func FormatDate(s string) (iso string, ok bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format(isoLayout), true
}

// DigitsOnly removes every character that is not an ASCII digit.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// FormatCPF keeps digits, right-pads with zeros to 11 and truncates to 11.
// An input without digits stays empty.
func FormatCPF(s string) string {
	return fixedWidth(DigitsOnly(s), nationalSize)
}

// FormatPhone applies the same 11-digit rule as FormatCPF to WhatsApp and landline numbers.
func FormatPhone(s string) string {
	return fixedWidth(DigitsOnly(s), nationalSize)
}

func fixedWidth(digits string, n int) string {
	if digits == "" {
		return ""
	}
	if len(digits) >= n {
		return digits[:n]
	}
	return digits + strings.Repeat("0", n-len(digits))
}

func digitsOfLen(s string, min, max int) bool {
	if len(s) < min || len(s) > max {
		return false
	}
	return DigitsOnly(s) == s
}

func leftPad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
