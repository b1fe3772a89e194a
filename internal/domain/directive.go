package domain

// InputType identifies which input surface the agent wants shown next
type InputType string

const (
	InputText           InputType = "text"
	InputServiceSelect  InputType = "service_select"
	InputDateTimePicker InputType = "datetime_picker"
	InputContactForm    InputType = "contact_form"
)

// ParseInputType maps the agent's input_type to a known surface.
// Unknown values fall back to free text so a server-side contract change
// never strands the widget.
func ParseInputType(s string) InputType {
	switch InputType(s) {
	case InputServiceSelect, InputDateTimePicker, InputContactForm:
		return InputType(s)
	default:
		return InputText
	}
}

// ServiceOption is one bookable service offered for selection
type ServiceOption struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Description     string  `json:"description,omitempty"`
}

// TimeSlot is one bookable appointment slot. Date is "2006-01-02" and
// Time is a 24-hour "15:04" clock, both as sent by the agent.
type TimeSlot struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	StaffName string `json:"staff_name,omitempty"`
}

// Contact form field names, in the fixed order the encoding grammar
// emits them.
const (
	FieldName  = "name"
	FieldPhone = "phone"
	FieldEmail = "email"
)

// InputConfig carries the type-specific configuration for a structured
// input surface. The agent sends a single union object; which fields are
// meaningful depends on the directive's input type.
type InputConfig struct {
	// service_select
	Services    []ServiceOption `json:"services,omitempty"`
	MultiSelect bool            `json:"multi_select,omitempty"`

	// datetime_picker
	MinDate string     `json:"min_date,omitempty"`
	Slots   []TimeSlot `json:"slots,omitempty"`

	// contact_form
	Fields []string `json:"fields,omitempty"`
}

// InputDirective is the agent's instruction for which input surface to
// show next. It is transient: consumed by one activation of the input
// state machine and replaced by the next directive (or by the implicit
// text directive after a submission).
type InputDirective struct {
	Type   InputType   `json:"input_type"`
	Config InputConfig `json:"input_config"`
}

// TextDirective is the default directive: plain free-text input.
func TextDirective() InputDirective {
	return InputDirective{Type: InputText}
}
