package wizard

import (
	"context"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/provisioning"
)

// Step is a named position in the setup flow.
type Step int

const (
	StepBasicInfo Step = iota
	StepToneStyle
	StepCallHandling
	StepReviewActivate

	stepCount
)

// Name returns the display name of the step.
func (s Step) Name() string {
	switch s {
	case StepBasicInfo:
		return "Basic Info"
	case StepToneStyle:
		return "Tone & Style"
	case StepCallHandling:
		return "Call Handling"
	case StepReviewActivate:
		return "Review & Activate"
	}
	return "Unknown"
}

// Wizard coordinates the ordered configuration steps for one operator
// session. It holds only the current step index; all persistence is
// delegated to the provisioning service, and drafts saved on earlier steps
// survive back-navigation untouched.
type Wizard struct {
	tenantID string
	svc      *provisioning.Service
	current  Step
}

// New creates a wizard session for a tenant, resuming from the persisted
// step marker when one exists.
func New(ctx context.Context, tenantID string, svc *provisioning.Service) (*Wizard, error) {
	w := &Wizard{tenantID: tenantID, svc: svc}

	profile, err := svc.SaveDraft(ctx, tenantID, 0, &domain.UpdateAgentProfileRequest{})
	if err != nil {
		return nil, err
	}
	if profile.SetupStep > 0 && profile.SetupStep < int(stepCount) {
		w.current = Step(profile.SetupStep)
	}
	return w, nil
}

// Current returns the active step.
func (w *Wizard) Current() Step {
	return w.current
}

// Save persists the partial configuration for the active step without
// moving.
func (w *Wizard) Save(ctx context.Context, req *domain.UpdateAgentProfileRequest) error {
	_, err := w.svc.SaveDraft(ctx, w.tenantID, int(w.current), req)
	return err
}

// Next saves the active step and advances. Forward navigation from Basic
// Info requires its required fields; later steps have no blocking fields -
// activation is the only hard gate.
func (w *Wizard) Next(ctx context.Context, req *domain.UpdateAgentProfileRequest) error {
	if w.current >= StepReviewActivate {
		return &domain.ValidationError{Field: "step", Message: "already on the final step"}
	}

	profile, err := w.svc.SaveDraft(ctx, w.tenantID, int(w.current), req)
	if err != nil {
		return err
	}

	if w.current == StepBasicInfo {
		if profile.AgentName == "" {
			return &domain.ValidationError{Field: "agent_name", Message: "agent name is required"}
		}
		if profile.BusinessName == "" {
			return &domain.ValidationError{Field: "business_name", Message: "business name is required"}
		}
	}

	w.current++
	// Record forward progress; SaveDraft keeps the marker monotonic.
	if _, err := w.svc.SaveDraft(ctx, w.tenantID, int(w.current), &domain.UpdateAgentProfileRequest{}); err != nil {
		return err
	}
	return nil
}

// Back moves to the previous step. Edits already saved stay saved; the
// persisted step marker is never rewound.
func (w *Wizard) Back() {
	if w.current > StepBasicInfo {
		w.current--
	}
}

// Activate runs the terminal wizard action from the review step.
func (w *Wizard) Activate(ctx context.Context, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error) {
	if w.current != StepReviewActivate {
		return nil, &domain.CapabilityError{Message: "activation is only available on the Review & Activate step"}
	}
	return w.svc.Activate(ctx, w.tenantID, req)
}
