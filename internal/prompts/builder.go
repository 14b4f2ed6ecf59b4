package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
)

// Builder renders the hosted LLM prompt text from a tenant's agent profile.
// The output is what gets pushed to the provider as the general prompt and
// the opening utterance.
type Builder struct {
	Profile *domain.AgentProfile
}

// NewBuilder creates a prompt builder for the given profile.
func NewBuilder(profile *domain.AgentProfile) *Builder {
	return &Builder{Profile: profile}
}

// GeneralPrompt assembles the full system instructions for the hosted agent.
// An explicit operator-written prompt on the profile wins over generation.
func (b *Builder) GeneralPrompt() string {
	if b.Profile.Prompt != nil && b.Profile.Prompt.GeneralPrompt != "" {
		return b.Profile.Prompt.GeneralPrompt
	}

	return joinBlocks(
		b.roleBlock(),
		b.toneBlock(),
		b.callHandlingBlock(),
		b.memoryBlock(),
		b.bookingBlock(),
		promptGuardrails,
	)
}

// BeginMessage is the opening utterance for inbound calls.
func (b *Builder) BeginMessage() string {
	if b.Profile.Prompt != nil && b.Profile.Prompt.BeginMessage != "" {
		return b.Profile.Prompt.BeginMessage
	}
	if b.Profile.BusinessName != "" {
		return fmt.Sprintf("Thank you for calling %s. How can I help you today?", b.Profile.BusinessName)
	}
	return promptDefaultBeginMessage
}

func (b *Builder) roleBlock() string {
	var sb strings.Builder
	sb.WriteString("## Role\n\n")
	name := b.Profile.AgentName
	if name == "" {
		name = "the receptionist"
	}
	fmt.Fprintf(&sb, "You are %s, the voice assistant for %s", name, b.Profile.BusinessName)
	if b.Profile.Industry != "" {
		fmt.Fprintf(&sb, ", a business in the %s industry", strings.ToLower(b.Profile.Industry))
	}
	sb.WriteString(". You answer calls and text messages on behalf of the business.")
	if b.Profile.BusinessDescription != "" {
		fmt.Fprintf(&sb, "\n\nAbout the business: %s", b.Profile.BusinessDescription)
	}
	return sb.String()
}

func (b *Builder) toneBlock() string {
	tone := b.Profile.Tone
	if !tone.Valid() {
		tone = domain.ToneProfessional
	}
	return fmt.Sprintf("## Tone\n\nSpeak in a %s manner. Keep responses short and natural for voice; no markdown in spoken output.", tone)
}

func (b *Builder) callHandlingBlock() string {
	ch := b.Profile.CallHandling
	if ch == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Call Handling\n")

	switch ch.Preference {
	case domain.HandleAutomatically:
		sb.WriteString("\nHandle calls end to end yourself whenever possible.")
	case domain.HandleNotifyTeam:
		sb.WriteString("\nHandle the call, then make sure the team is notified with a summary.")
	case domain.HandleTransferNow:
		sb.WriteString("\nTransfer callers to a human immediately after greeting them.")
	}

	switch ch.Fallback {
	case domain.FallbackTakeMessage:
		sb.WriteString("\nIf you cannot help, take a detailed message.")
	case domain.FallbackVoicemail:
		sb.WriteString("\nIf you cannot help, transfer the caller to voicemail.")
	case domain.FallbackCallback:
		sb.WriteString("\nIf you cannot help, offer to schedule a callback.")
	case domain.FallbackHumanTransfer:
		sb.WriteString("\nIf you cannot help, transfer the caller to a human.")
	}

	if len(ch.CallReasons) > 0 {
		sb.WriteString("\n\nCommon reasons people call:\n")
		for _, reason := range ch.CallReasons {
			fmt.Fprintf(&sb, "- %s\n", reason)
		}
	}
	return sb.String()
}

func (b *Builder) memoryBlock() string {
	m := b.Profile.Memory
	if m == nil || !m.Enabled {
		return ""
	}

	var items []string
	if m.CallHistory {
		items = append(items, "previous call history with this caller")
	}
	if m.CustomerNotes {
		items = append(items, "notes kept on the customer record")
	}
	if m.CalendarTasks {
		items = append(items, "the business calendar and open tasks")
	}
	if len(items) == 0 {
		return ""
	}
	return "## Memory\n\nYou may reference: " + strings.Join(items, "; ") + "."
}

func (b *Builder) bookingBlock() string {
	bk := b.Profile.Booking
	if bk == nil || len(bk.Schedule) == 0 {
		return ""
	}

	days := make([]string, 0, len(bk.Schedule))
	for day := range bk.Schedule {
		days = append(days, day)
	}
	sort.Strings(days)

	var sb strings.Builder
	sb.WriteString("## Booking Availability\n")
	if bk.Timezone != "" {
		fmt.Fprintf(&sb, "\nAll times are in %s.\n", bk.Timezone)
	}
	for _, day := range days {
		fmt.Fprintf(&sb, "- %s: %s\n", day, bk.Schedule[day])
	}
	sb.WriteString("\nOnly offer appointment slots inside these windows.")
	return sb.String()
}

// joinBlocks cleans and joins prompt blocks with double newlines, skipping
// empty ones.
func joinBlocks(blocks ...string) string {
	var valid []string
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			valid = append(valid, trimmed)
		}
	}
	return strings.Join(valid, "\n\n")
}
