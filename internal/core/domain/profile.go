package domain

import "fmt"

// Profile is a character card. It is loaded by a ProfileStore and rendered
// into the system instruction of every request.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	BookTitle   string `json:"book_title"`
	CorpusID    string `json:"corpus_id"`

	Identity        []string `json:"identity"`
	Appearance      []string `json:"appearance"`
	Personality     []string `json:"personality"`
	SpeechStyle     []string `json:"speech_style"`
	Relationships   []string `json:"relationships"`
	InteractionUser []string `json:"interaction_with_user"`
	Principles      []string `json:"principles"`
	WorldRules      []string `json:"world_rules"`
	SafetyRules     []string `json:"safety_rules"`
}

// ProfileSection is one named trait list of a Profile.
type ProfileSection struct {
	Title string
	Items []string
}

// Sections returns the non-empty trait lists in rendering order.
func (p Profile) Sections() []ProfileSection {
	all := []ProfileSection{
		{Title: "Identity", Items: p.Identity},
		{Title: "Appearance", Items: p.Appearance},
		{Title: "Personality", Items: p.Personality},
		{Title: "Speech style", Items: p.SpeechStyle},
		{Title: "Relationships", Items: p.Relationships},
		{Title: "How you treat the user", Items: p.InteractionUser},
		{Title: "Principles", Items: p.Principles},
		{Title: "World rules", Items: p.WorldRules},
		{Title: "Safety rules", Items: p.SafetyRules},
	}
	out := make([]ProfileSection, 0, len(all))
	for _, s := range all {
		if len(s.Items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Name returns the display name, falling back to the ID.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Validate checks the fields every profile must carry.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	if p.DisplayName == "" {
		return fmt.Errorf("%w: profile %q has no display_name", ErrInvalidInput, p.ID)
	}
	if p.CorpusID == "" {
		return fmt.Errorf("%w: profile %q has no corpus_id", ErrInvalidInput, p.ID)
	}
	return nil
}
