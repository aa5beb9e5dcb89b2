package platform

import "time"

// Colors used for embeds.
const (
	ColorInfo    = 0x0099ff
	ColorSuccess = 0x00ff00
	ColorWarning = 0xffa500
	ColorDanger  = 0xff0000
)

// Message is a platform-neutral message.
type Message struct {
	Content    string
	Embeds     []Embed
	Components []Row
}

// Text builds a message with only content.
func Text(content string) Message { return Message{Content: content} }

// Embed is a rich card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// EmbedField is one name/value line of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle selects how a button is drawn.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable control. CustomID is an encoded customid.Action.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

// SelectOption is one entry of a select menu.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select is a single-choice dropdown.
type Select struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// MaxSelectOptions is the platform limit on options per select.
const MaxSelectOptions = 25

// Row holds either buttons or one select.
type Row struct {
	Buttons []Button
	Select  *Select
}

// ButtonRow builds a row of buttons.
func ButtonRow(buttons ...Button) Row { return Row{Buttons: buttons} }

// SelectRow builds a row holding one select.
func SelectRow(s Select) Row { return Row{Select: &s} }

// TextInput is one field of a modal.
type TextInput struct {
	ID          string
	Label       string
	Placeholder string
	Value       string
	Paragraph   bool
	Required    bool
	MinLength   int
	MaxLength   int
}

// Modal is a form shown in response to an interaction.
type Modal struct {
	CustomID string
	Title    string
	Inputs   []TextInput
}
