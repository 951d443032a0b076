package schema

// CertificateFieldSpecs defines the certificate import columns in template order.
var CertificateFieldSpecs = []FieldSpec{
	{Name: "crew_id", Required: true, Kind: KindNumber},
	{Name: "certificate_type", Required: true, Kind: KindEnum, EnumValues: []string{
		"seamans_book", "deck_officer", "engine_officer", "medical", "safety", "special",
	}},
	{Name: "certificate_number", Required: true, Kind: KindString, MaxLength: 50},
	{Name: "issue_date", Required: true, Kind: KindDate},
	{Name: "expiry_date", Required: true, Kind: KindDate},
	{Name: "issuing_authority", Required: true, Kind: KindString, MaxLength: 200},
	{Name: "status", Required: true, Kind: KindEnum, EnumValues: []string{"active", "expired", "revoked"}},
}

var certificateExample = []string{
	"1",
	"seamans_book",
	"SB2024001",
	"2024-01-01",
	"2027-01-01",
	"中华人民共和国海事局",
	"active",
}
