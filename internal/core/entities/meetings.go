package entities

import "github.com/JonMunkholm/crmsync/internal/core"

var (
	MeetingTypes      = []string{"In Person", "Video Call", "Phone Call"}
	MeetingStatuses   = []string{"Scheduled", "Completed", "Cancelled"}
	ActionItemStatuses = []string{"Open", "Done"}
)

func init() {
	core.Register(Meetings())
}

// Meetings returns the meeting schema. Action items travel in the
// action_items column as a JSON array and are stored as child records.
func Meetings() *core.Schema {
	return &core.Schema{
		Entity:  "meetings",
		Label:   "Meetings",
		IDField: "id",
		Fields: []core.FieldSpec{
			{Name: "id", Label: "ID", Type: core.FieldText, Synonyms: []string{"meetingid", "recordid"}},
			{Name: "title", Label: "Title", Type: core.FieldText, Required: true,
				Synonyms: []string{"subject", "meetingtitle", "topic", "meetingname"}},
			{Name: "start_time", Label: "Start Time", Type: core.FieldDateTime, Required: true,
				Synonyms: []string{"start", "startdate", "meetingdate", "starttime"}},
			{Name: "end_time", Label: "End Time", Type: core.FieldDateTime,
				Synonyms: []string{"endtime", "enddate", "finish"}},
			{Name: "location", Label: "Location", Type: core.FieldText,
				Synonyms: []string{"place", "venue", "room"}},
			{Name: "meeting_type", Label: "Type", Type: core.FieldEnum, EnumValues: MeetingTypes,
				Synonyms: []string{"meetingtype", "kind", "format"}},
			{Name: "status", Label: "Status", Type: core.FieldEnum, EnumValues: MeetingStatuses,
				Synonyms: []string{"meetingstatus"}},
			{Name: "organizer_id", Label: "Organizer", Type: core.FieldIDRef,
				Synonyms: []string{"organizer", "organiser", "host", "owner"}},
			{Name: "notes", Label: "Notes", Type: core.FieldText,
				Synonyms: []string{"description", "agenda", "minutes"}},
			{Name: "action_items", Label: "Action Items", Type: core.FieldJSON,
				Synonyms: []string{"actionitems", "actions", "todos", "tasks"}},
		},
		NaturalKey: []string{"title", "start_time"},
		Child: &core.ChildSpec{
			Field:      "action_items",
			Entity:     "action_items",
			ForeignKey: "meeting_id",
			Fields: []core.FieldSpec{
				{Name: "description", Label: "Description", Type: core.FieldText, Required: true,
					Synonyms: []string{"text", "item", "task", "title"}},
				{Name: "assignee_id", Label: "Assignee", Type: core.FieldIDRef,
					Synonyms: []string{"assignee", "assignedto", "owner"}},
				{Name: "due_date", Label: "Due Date", Type: core.FieldDate,
					Synonyms: []string{"due", "duedate", "deadline"}},
				{Name: "status", Label: "Status", Type: core.FieldEnum, EnumValues: ActionItemStatuses,
					Synonyms: []string{"state", "done"}},
			},
		},
	}
}
