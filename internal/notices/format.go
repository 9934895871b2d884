// Package notices maps payment notice request data into the strings and
// document structure expected by the rendering templates. Everything here is
// pure: same input, byte-identical output.
package notices

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// PosteDocumentTypeCode is the fixed document type marker required by the
// Poste data matrix layout.
const PosteDocumentTypeCode = "896"

const (
	qrSchemeTag  = "PAGOPA"
	qrVersionTag = "002"
)

var italianPrinter = message.NewPrinter(language.Italian)

// FormatError reports an amount that cannot be encoded. Template output is a
// byte-for-byte contract, so malformed input is rejected instead of rendered
// best-effort.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot format amount %q: %s", e.Value, e.Reason)
}

// QRCode builds the pipe-delimited QR payload: scheme tag, version tag,
// notice code zero-padded to 18, creditor tax code zero-padded to 11, and the
// raw minor-unit amount.
func QRCode(code, taxCode, amount string) string {
	return strings.Join([]string{
		qrSchemeTag,
		qrVersionTag,
		leftPad(code, 18, '0'),
		leftPad(taxCode, 11, '0'),
		amount,
	}, "|")
}

// PosteDataMatrix builds the fixed-width data matrix line. Text fields are
// space-padded to their slot width, never truncated.
func PosteDataMatrix(ciTaxCode, debtorTaxCode, fullName, subject, accountNumber, amount, docType, code string) string {
	var b strings.Builder
	b.WriteString("codfase=NBPA;")
	b.WriteString(codeline(code, accountNumber, amount, docType))
	b.WriteString("1P1")
	b.WriteString(rightPad(ciTaxCode, 11))
	b.WriteString(rightPad(debtorTaxCode, 16))
	b.WriteString(rightPad(fullName, 40))
	b.WriteString(rightPad(subject, 110))
	b.WriteString(rightPad("", 12))
	b.WriteString("A")
	return b.String()
}

// codeline is the sub-encoded core of the matrix: each field is preceded by
// its fixed length marker.
func codeline(code, accountNumber, amount, docType string) string {
	return strings.Join([]string{
		"18", leftPad(code, 18, '0'),
		"12", leftPad(accountNumber, 12, '0'),
		"10", leftPad(amount, 10, '0'),
		"3", docType,
	}, "")
}

// CurrencyEuro renders an integer minor-unit amount as a euro value with the
// Italian decimal and grouping separators and exactly two fraction digits.
// The split is done in integer arithmetic so every representable amount is
// rendered exactly.
func CurrencyEuro(minorUnits string) (string, error) {
	trimmed := strings.TrimSpace(minorUnits)
	cents, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return "", &FormatError{Value: minorUnits, Reason: "not an integer minor-unit amount"}
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	fraction := cents % 100
	grouped := italianPrinter.Sprint(number.Decimal(whole))
	return fmt.Sprintf("%s%s,%02d", sign, grouped, fraction), nil
}

func leftPad(value string, width int, fill byte) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat(string(fill), width-len(value)) + value
}

func rightPad(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(value))
}
