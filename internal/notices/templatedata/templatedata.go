// Package templatedata holds the JSON document handed to the PDF engine.
// Field names and shapes are part of the template contract and must not
// change without a matching template revision.
package templatedata

type Notice struct {
	Payee  Payee      `json:"payee"`
	Debtor Debtor     `json:"debtor"`
	Notice NoticeData `json:"notice"`
}

type Payee struct {
	TaxCode        string  `json:"taxCode,omitempty"`
	Name           string  `json:"name,omitempty"`
	Channel        Channel `json:"channel"`
	Logo           string  `json:"logo,omitempty"`
	AdditionalInfo string  `json:"additionalInfo,omitempty"`
	Sector         string  `json:"sector,omitempty"`
}

type Channel struct {
	Online   Online   `json:"online"`
	Physical Physical `json:"physical"`
}

type Online struct {
	Website bool `json:"website"`
	App     bool `json:"app"`
}

type Physical struct {
	Data string `json:"data,omitempty"`
}

type Debtor struct {
	TaxCode        string `json:"taxCode,omitempty"`
	FullName       string `json:"fullName,omitempty"`
	Address        string `json:"address,omitempty"`
	PostalCode     string `json:"postalCode,omitempty"`
	City           string `json:"city,omitempty"`
	BuildingNumber string `json:"buildingNumber,omitempty"`
	Province       string `json:"province,omitempty"`
}

type NoticeData struct {
	RefNumber          string       `json:"refNumber,omitempty"`
	CBillCode          string       `json:"cbillCode,omitempty"`
	QRCode             string       `json:"qrCode,omitempty"`
	Subject            string       `json:"subject,omitempty"`
	Amount             string       `json:"amount,omitempty"`
	ExpiryDate         string       `json:"expiryDate,omitempty"`
	PosteAuth          string       `json:"posteAuth,omitempty"`
	PosteAccountNumber string       `json:"posteAccountNumber,omitempty"`
	PosteDocumentType  string       `json:"posteDocumentType,omitempty"`
	PosteDataMatrix    string       `json:"posteDataMatrix,omitempty"`
	Installments       Installments `json:"instalments"`
}

type Installments struct {
	Reduced    *Installment  `json:"reduced,omitempty"`
	Discounted *Installment  `json:"discounted,omitempty"`
	Items      []Installment `json:"items"`
}

type Installment struct {
	RefNumber         string `json:"refNumber,omitempty"`
	CBillCode         string `json:"cbillCode,omitempty"`
	QRCode            string `json:"qrCode,omitempty"`
	Amount            string `json:"amount,omitempty"`
	ExpiryDate        string `json:"expiryDate,omitempty"`
	PosteAuth         string `json:"posteAuth,omitempty"`
	PosteDocumentType string `json:"posteDocumentType,omitempty"`
	PosteDataMatrix   string `json:"posteDataMatrix,omitempty"`
}
