package entities

import "github.com/JonMunkholm/crmsync/internal/core"

// Lead status and source spellings as stored.
var (
	LeadStatuses = []string{"New", "Contacted", "Qualified", "Unqualified", "Converted"}
	LeadSources  = []string{"Website", "Referral", "Event", "Cold Call", "Partner", "Other"}
)

func init() {
	core.Register(Leads())
}

// Leads returns the lead schema. A lead is identified by name and company
// when no id is supplied.
func Leads() *core.Schema {
	return &core.Schema{
		Entity:  "leads",
		Label:   "Leads",
		IDField: "id",
		Fields: []core.FieldSpec{
			{Name: "id", Label: "ID", Type: core.FieldText, Synonyms: []string{"leadid", "recordid"}},
			{Name: "name", Label: "Lead Name", Type: core.FieldText, Required: true,
				Synonyms: []string{"leadname", "fullname", "contactname"}},
			{Name: "company", Label: "Company", Type: core.FieldText, Required: true,
				Synonyms: []string{"companyname", "organization", "organisation", "accountname"}},
			{Name: "email", Label: "Email", Type: core.FieldText,
				Synonyms: []string{"emailaddress", "email", "mail"}},
			{Name: "phone", Label: "Phone", Type: core.FieldText,
				Synonyms: []string{"phonenumber", "telephone", "mobile", "phone"}},
			{Name: "status", Label: "Status", Type: core.FieldEnum, EnumValues: LeadStatuses,
				Synonyms: []string{"leadstatus", "stage"}},
			{Name: "source", Label: "Source", Type: core.FieldEnum, EnumValues: LeadSources,
				Synonyms: []string{"leadsource", "channel", "origin"}},
			{Name: "estimated_value", Label: "Estimated Value", Type: core.FieldNumber,
				Synonyms: []string{"value", "dealvalue", "amount", "dealsize"}},
			{Name: "expected_close_date", Label: "Expected Close Date", Type: core.FieldDate,
				Synonyms: []string{"closedate", "expectedclose"}},
			{Name: "owner_id", Label: "Owner", Type: core.FieldIDRef,
				Synonyms: []string{"owner", "assignedto", "leadowner", "salesrep"}},
			{Name: "last_contacted_at", Label: "Last Contacted", Type: core.FieldDateTime,
				Synonyms: []string{"lastcontacted", "lastcontact", "lastactivity"}},
			{Name: "notes", Label: "Notes", Type: core.FieldText,
				Synonyms: []string{"description", "comments", "note"}},
		},
		NaturalKey: []string{"name", "company"},
	}
}
