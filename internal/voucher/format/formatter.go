package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

const DefaultTemplate = "V-{YYYY}-{SEQ6}"

// VoucherNumber renders a voucher number from a template, the voucher date
// and the per-type sequence value. It has no side effects.
//
// Tokens: {YYYY} {YY} {MM} {DD} {SEQ} and {SEQn} for a zero-padded sequence.
func VoucherNumber(template string, date time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid voucher sequence: %d", seq)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", date.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", date.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", date.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", date.Format("02"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in voucher number format: %s", out)
	}
	if !strings.Contains(template, "{SEQ") {
		return "", fmt.Errorf("voucher number format %q has no sequence token", template)
	}
	return out, nil
}
