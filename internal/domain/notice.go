package domain

// NoticeGenerationRequestItem is one notice to generate: the template to use
// plus the business data rendered into it.
type NoticeGenerationRequestItem struct {
	TemplateID string            `json:"templateId"`
	Data       NoticeRequestData `json:"data"`
}

type NoticeRequestData struct {
	Notice              Notice              `json:"notice"`
	CreditorInstitution CreditorInstitution `json:"creditorInstitution"`
	Debtor              Debtor              `json:"debtor"`
}

type Notice struct {
	Subject       string            `json:"subject,omitempty"`
	PaymentAmount *int64            `json:"paymentAmount,omitempty"`
	Reduced       *InstallmentData  `json:"reduced,omitempty"`
	Discounted    *InstallmentData  `json:"discounted,omitempty"`
	DueDate       string            `json:"dueDate,omitempty"`
	Code          string            `json:"code,omitempty"`
	Installments  []InstallmentData `json:"installments,omitempty"`
}

type InstallmentData struct {
	Code    string `json:"code"`
	Amount  int64  `json:"amount"`
	DueDate string `json:"dueDate,omitempty"`
}

type CreditorInstitution struct {
	TaxCode            string `json:"taxCode"`
	FullName           string `json:"fullName,omitempty"`
	Organization       string `json:"organization,omitempty"`
	Info               string `json:"info,omitempty"`
	WebChannel         *bool  `json:"webChannel,omitempty"`
	AppChannel         *bool  `json:"appChannel,omitempty"`
	PhysicalChannel    string `json:"physicalChannel,omitempty"`
	CBill              string `json:"cbill,omitempty"`
	Logo               string `json:"logo,omitempty"`
	PosteAuth          string `json:"posteAuth,omitempty"`
	PosteAccountNumber string `json:"posteAccountNumber,omitempty"`
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
