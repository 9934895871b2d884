package notices

import (
	"strconv"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/notices/templatedata"
)

// MapTemplateData translates the request payload into the document rendered
// by the PDF template. The QR payload and formatted amount are produced only
// when a payment amount is present; the Poste data matrix only when the
// institution carries a Poste authorization code.
func MapTemplateData(data domain.NoticeRequestData) (templatedata.Notice, error) {
	ci := data.CreditorInstitution
	debtor := data.Debtor
	notice := data.Notice

	out := templatedata.Notice{
		Payee: templatedata.Payee{
			TaxCode: ci.TaxCode,
			Name:    ci.FullName,
			Channel: templatedata.Channel{
				Online: templatedata.Online{
					Website: boolValue(ci.WebChannel),
					App:     boolValue(ci.AppChannel),
				},
				Physical: templatedata.Physical{Data: ci.PhysicalChannel},
			},
			Logo:           ci.Logo,
			AdditionalInfo: ci.Info,
			Sector:         ci.Organization,
		},
		Debtor: templatedata.Debtor{
			TaxCode:        debtor.TaxCode,
			FullName:       debtor.FullName,
			Address:        debtor.Address,
			PostalCode:     debtor.PostalCode,
			City:           debtor.City,
			BuildingNumber: debtor.BuildingNumber,
			Province:       debtor.Province,
		},
		Notice: templatedata.NoticeData{
			RefNumber:          notice.Code,
			CBillCode:          ci.CBill,
			Subject:            notice.Subject,
			ExpiryDate:         notice.DueDate,
			PosteAuth:          ci.PosteAuth,
			PosteAccountNumber: ci.PosteAccountNumber,
			PosteDocumentType:  PosteDocumentTypeCode,
			Installments:       templatedata.Installments{Items: []templatedata.Installment{}},
		},
	}

	if notice.PaymentAmount != nil {
		amount := strconv.FormatInt(*notice.PaymentAmount, 10)
		formatted, err := CurrencyEuro(amount)
		if err != nil {
			return templatedata.Notice{}, err
		}
		out.Notice.QRCode = QRCode(notice.Code, ci.TaxCode, amount)
		out.Notice.Amount = formatted
		if ci.PosteAuth != "" {
			out.Notice.PosteDataMatrix = PosteDataMatrix(
				ci.TaxCode,
				debtor.TaxCode,
				debtor.FullName,
				notice.Subject,
				ci.PosteAccountNumber,
				amount,
				PosteDocumentTypeCode,
				notice.Code,
			)
		}
	}

	if notice.Reduced != nil {
		inst, err := mapInstallment(ci, debtor, notice.Subject, *notice.Reduced)
		if err != nil {
			return templatedata.Notice{}, err
		}
		out.Notice.Installments.Reduced = &inst
	}
	if notice.Discounted != nil {
		inst, err := mapInstallment(ci, debtor, notice.Subject, *notice.Discounted)
		if err != nil {
			return templatedata.Notice{}, err
		}
		out.Notice.Installments.Discounted = &inst
	}
	for _, item := range notice.Installments {
		inst, err := mapInstallment(ci, debtor, notice.Subject, item)
		if err != nil {
			return templatedata.Notice{}, err
		}
		out.Notice.Installments.Items = append(out.Notice.Installments.Items, inst)
	}

	return out, nil
}

func mapInstallment(
	ci domain.CreditorInstitution,
	debtor domain.Debtor,
	subject string,
	data domain.InstallmentData,
) (templatedata.Installment, error) {
	amount := strconv.FormatInt(data.Amount, 10)
	formatted, err := CurrencyEuro(amount)
	if err != nil {
		return templatedata.Installment{}, err
	}
	inst := templatedata.Installment{
		RefNumber:         data.Code,
		CBillCode:         ci.CBill,
		QRCode:            QRCode(data.Code, ci.TaxCode, amount),
		Amount:            formatted,
		ExpiryDate:        data.DueDate,
		PosteAuth:         ci.PosteAuth,
		PosteDocumentType: PosteDocumentTypeCode,
	}
	if ci.PosteAuth != "" {
		inst.PosteDataMatrix = PosteDataMatrix(
			ci.TaxCode,
			debtor.TaxCode,
			debtor.FullName,
			subject,
			ci.PosteAccountNumber,
			amount,
			PosteDocumentTypeCode,
			data.Code,
		)
	}
	return inst, nil
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
