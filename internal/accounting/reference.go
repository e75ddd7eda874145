// Package accounting assigns SKR03 accounts and tax categories to extracted
// invoices, issues the own invoice numbers and checks booking consistency.
package accounting

// Tax category values.
const (
	Tax19     = "19%"
	Tax7      = "7%"
	Tax0      = "0%"
	TaxRC     = "RC"
	TaxKlein  = "KLEIN"
	TaxPrivat = "PRIVAT"
)

// AccountDefinition is one booking account of the chart of accounts.
// An empty TaxCategories list allows every category.
type AccountDefinition struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	SKR03         string   `yaml:"skr03" json:"skr03"`
	TaxCategories []string `yaml:"steuerkategorien" json:"steuerkategorien"`
}

// TaxCategoryDefinition describes a tax treatment a booking can carry.
type TaxCategoryDefinition struct {
	Value         string  `yaml:"value" json:"value"`
	Label         string  `yaml:"label" json:"label"`
	UstSatz       float64 `yaml:"ust_satz" json:"ustSatz"`
	Vorsteuer     bool    `yaml:"vorsteuer" json:"vorsteuer"`
	ReverseCharge bool    `yaml:"reverse_charge" json:"reverseCharge"`
}

// Reference is the static configuration the engine books against.
type Reference struct {
	Accounts      []AccountDefinition     `json:"accounts"`
	TaxCategories []TaxCategoryDefinition `json:"taxCategories"`

	// DefaultAccountID is booked when no rule matches.
	DefaultAccountID string `json:"defaultAccountId"`
	// ZeroRateAccountID replaces DefaultAccountID for untaxed receipts.
	ZeroRateAccountID string `json:"zeroRateAccountId"`
	// CreditAccount is the haben side of every booking.
	CreditAccount string `json:"creditAccount"`
	// InvoicePrefix starts every own invoice number.
	InvoicePrefix string `json:"invoicePrefix"`
}

// Account looks an account up by ID.
func (r Reference) Account(id string) (AccountDefinition, bool) {
	for _, a := range r.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountDefinition{}, false
}

// TaxCategory looks a tax category up by value.
func (r Reference) TaxCategory(value string) (TaxCategoryDefinition, bool) {
	for _, t := range r.TaxCategories {
		if t.Value == value {
			return t, true
		}
	}
	return TaxCategoryDefinition{}, false
}

// AllowsTaxCategory reports whether the account may be booked with tax.
func (r Reference) AllowsTaxCategory(accountID, tax string) bool {
	a, ok := r.Account(accountID)
	if !ok {
		return false
	}
	if len(a.TaxCategories) == 0 {
		return true
	}
	for _, t := range a.TaxCategories {
		if t == tax {
			return true
		}
	}
	return false
}

// DefaultReference is the built-in SKR03 excerpt for small businesses.
func DefaultReference() Reference {
	vat := []string{Tax19, Tax7, Tax0, TaxKlein, TaxPrivat}
	return Reference{
		Accounts: []AccountDefinition{
			{ID: "3400", Name: "Wareneingang", SKR03: "3400", TaxCategories: []string{Tax19, Tax7, Tax0, TaxRC, TaxKlein}},
			{ID: "3100", Name: "Fremdleistungen", SKR03: "3100", TaxCategories: []string{Tax19, Tax7, Tax0, TaxRC}},
			{ID: "4964", Name: "Aufwendungen für Software und Lizenzen", SKR03: "4964", TaxCategories: []string{Tax19, TaxRC, Tax0}},
			{ID: "4930", Name: "Bürobedarf", SKR03: "4930", TaxCategories: vat},
			{ID: "4920", Name: "Telefon", SKR03: "4920", TaxCategories: []string{Tax19, Tax0, TaxRC}},
			{ID: "4925", Name: "Internetkosten", SKR03: "4925", TaxCategories: []string{Tax19, Tax0, TaxRC}},
			{ID: "4240", Name: "Gas, Strom, Wasser", SKR03: "4240", TaxCategories: []string{Tax19, Tax7, Tax0}},
			{ID: "4360", Name: "Versicherungen", SKR03: "4360", TaxCategories: []string{Tax0}},
			{ID: "4650", Name: "Bewirtungskosten", SKR03: "4650", TaxCategories: []string{Tax19, Tax7, TaxKlein}},
			{ID: "4670", Name: "Reisekosten Unternehmer Fahrtkosten", SKR03: "4670", TaxCategories: []string{Tax19, Tax7, Tax0, TaxKlein}},
			{ID: "4680", Name: "Reisekosten Unternehmer Übernachtung", SKR03: "4680", TaxCategories: []string{Tax19, Tax7, Tax0}},
			{ID: "4530", Name: "Laufende Kfz-Betriebskosten", SKR03: "4530", TaxCategories: vat},
			{ID: "4910", Name: "Porto", SKR03: "4910", TaxCategories: []string{Tax0, Tax19}},
			{ID: "4900", Name: "Sonstige betriebliche Aufwendungen", SKR03: "4900", TaxCategories: vat},
			{ID: "4210", Name: "Miete", SKR03: "4210", TaxCategories: []string{Tax19, Tax0}},
			{ID: "4806", Name: "Wartungskosten für Hard- und Software", SKR03: "4806", TaxCategories: []string{Tax19, TaxRC}},
			{ID: "1800", Name: "Privatentnahmen", SKR03: "1800", TaxCategories: []string{TaxPrivat, Tax0}},
		},
		TaxCategories: []TaxCategoryDefinition{
			{Value: Tax19, Label: "19% Vorsteuer", UstSatz: 0.19, Vorsteuer: true},
			{Value: Tax7, Label: "7% Vorsteuer", UstSatz: 0.07, Vorsteuer: true},
			{Value: Tax0, Label: "0% (steuerfrei / PV-Nullsatz)", UstSatz: 0},
			{Value: TaxRC, Label: "Reverse Charge (§13b UStG)", UstSatz: 0.19, ReverseCharge: true},
			{Value: TaxKlein, Label: "Kleinunternehmer (§19 UStG)", UstSatz: 0},
			{Value: TaxPrivat, Label: "Privatanteil", UstSatz: 0},
		},
		DefaultAccountID:  "3400",
		ZeroRateAccountID: "4900",
		CreditAccount:     "1200",
		InvoicePrefix:     "ZOE",
	}
}
