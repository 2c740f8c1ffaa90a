package session

// View is what a front-end needs to render the session. It is derived, never stored.
type View struct {
	ID        string `json:"id"`
	Phase     Phase  `json:"phase"`
	HasImage  bool   `json:"has_image"`
	PreviewID string `json:"preview_id,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	ImageSize int    `json:"image_size,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Copied    bool   `json:"copied"`

	CanStart bool `json:"can_start"`
	CanRetry bool `json:"can_retry"`
	CanClear bool `json:"can_clear"`
	CanReset bool `json:"can_reset"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:       s.id,
		Phase:    s.phase,
		Text:     s.text,
		Error:    s.reason,
		Copied:   s.phase == PhaseSucceeded && s.now().Before(s.copiedUntil),
		CanStart: s.phase == PhaseImageReady,
		CanRetry: s.phase == PhaseFailed,
		CanReset: s.phase == PhaseSucceeded || s.phase == PhaseFailed,
	}
	if s.image != nil {
		v.HasImage = true
		v.PreviewID = s.image.Preview.ID
		v.MediaType = s.image.MediaType
		v.ImageSize = s.image.Size
		v.CanClear = true
	}
	return v
}
