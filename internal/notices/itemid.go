package notices

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pagopa/payment-notice-generator/internal/domain"
)

const itemIDPrefix = "pagopa-avviso"

// ItemID derives the stable identifier of one generation item from its
// business fields. Retries of the same logical notice map to the same id,
// which is what makes folder item registration and ledger deduplication work.
func ItemID(item domain.NoticeGenerationRequestItem) string {
	return fmt.Sprintf("%s-%s-%s-%s",
		itemIDPrefix,
		item.Data.CreditorInstitution.TaxCode,
		noticeCode(item.Data.Notice),
		item.TemplateID,
	)
}

// noticeCode picks the reference code of a notice: the plain code, overridden
// in order by the reduced variant, the discounted variant, and the first
// installment. A notice with no code at all gets a random one, losing retry
// determinism, which is acceptable only because such a notice cannot be
// rendered anyway.
func noticeCode(n domain.Notice) string {
	code := n.Code
	if n.Reduced != nil {
		code = n.Reduced.Code
	}
	if n.Discounted != nil {
		code = n.Discounted.Code
	}
	if len(n.Installments) > 0 {
		code = n.Installments[0].Code
	}
	if code == "" {
		code = uuid.NewString()
	}
	return code
}
