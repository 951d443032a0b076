package schema

// CrewFieldSpecs defines the crew import columns in template order.
var CrewFieldSpecs = []FieldSpec{
	{Name: "name", Required: true, Kind: KindString, MaxLength: 100},
	{Name: "gender", Required: true, Kind: KindEnum, EnumValues: []string{"male", "female"}},
	{Name: "birth_date", Required: true, Kind: KindDate},
	{Name: "id_number", Required: true, Kind: KindString, MaxLength: 20},
	{Name: "phone", Required: true, Kind: KindPhone},
	{Name: "email", Required: false, Kind: KindEmail},
	{Name: "nationality", Required: true, Kind: KindString, MaxLength: 50},
	{Name: "hometown", Required: true, Kind: KindString, MaxLength: 100},
	{Name: "marital_status", Required: true, Kind: KindEnum, EnumValues: []string{"single", "married", "divorced", "widowed"}},
	{Name: "education", Required: true, Kind: KindEnum, EnumValues: []string{"primary", "secondary", "college", "university", "postgraduate"}},
	{Name: "department", Required: true, Kind: KindEnum, EnumValues: []string{"deck", "engine", "service", "management"}},
	{Name: "position", Required: true, Kind: KindString, MaxLength: 100},
	{Name: "join_date", Required: true, Kind: KindDate},
	{Name: "status", Required: true, Kind: KindEnum, EnumValues: []string{"active", "inactive", "on_leave"}},
	{Name: "ship_id", Required: false, Kind: KindNumber},
}

// crewExample is the worked example written to the crew template.
var crewExample = []string{
	"张三",
	"male",
	"1990-01-01",
	"123456789012345678",
	"13800138000",
	"zhangsan@example.com",
	"中国",
	"北京市",
	"married",
	"university",
	"deck",
	"大副",
	"2020-01-01",
	"active",
	"1",
}
