// ABOUTME: The digital-human job record: status enum, transition table, stage states, costs, and serialization.
// ABOUTME: The record is exclusively owned by the Runner and persisted after every mutation.
package digitalhuman

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a digital-human job.
type TaskStatus string

const (
	StatusPending          TaskStatus = "pending"
	StatusAvatarGenerating TaskStatus = "avatar_generating"
	StatusAvatarReady      TaskStatus = "avatar_ready"
	StatusSpeechGenerating TaskStatus = "speech_generating"
	StatusSpeechReady      TaskStatus = "speech_ready"
	StatusVideoRendering   TaskStatus = "video_rendering"
	StatusFinished         TaskStatus = "finished"
	StatusFailed           TaskStatus = "failed"
)

// allowedTransitions is the explicit edge set of the job state machine.
// Terminal states have no outgoing edges.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:          {StatusAvatarGenerating, StatusFailed},
	StatusAvatarGenerating: {StatusAvatarReady, StatusFailed},
	StatusAvatarReady:      {StatusSpeechGenerating, StatusFailed},
	StatusSpeechGenerating: {StatusSpeechReady, StatusFailed},
	StatusSpeechReady:      {StatusVideoRendering, StatusFailed},
	StatusVideoRendering:   {StatusFinished, StatusFailed},
	StatusFinished:         {},
	StatusFailed:           {},
}

// Terminal reports whether the status has no outgoing transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

func transitionAllowed(from, to TaskStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskRequest carries the caller-supplied parameters of one job.
type TaskRequest struct {
	AvatarMode       string  `json:"avatar_mode"`
	AvatarPrompt     string  `json:"avatar_prompt,omitempty"`
	AvatarUploadPath string  `json:"avatar_upload_path,omitempty"`
	SpeechText       string  `json:"speech_text"`
	VoiceID          string  `json:"voice_id"`
	Resolution       string  `json:"resolution"`
	Speed            float64 `json:"speed"`
	Pitch            int     `json:"pitch"`
	Emotion          string  `json:"emotion"`
	Seed             int     `json:"seed"`
	MaskImage        string  `json:"mask_image,omitempty"`
}

// StageState tracks one of the three fixed stages of a job.
type StageState struct {
	State          string `json:"state"`
	Message        string `json:"message"`
	Retries        int    `json:"retries"`
	ProviderTaskID string `json:"provider_task_id,omitempty"`
	OutputURL      string `json:"output_url,omitempty"`
	ArtifactPath   string `json:"artifact_path,omitempty"`
}

// Stages holds the three fixed stage records of a job.
type Stages struct {
	Avatar StageState `json:"avatar"`
	Speech StageState `json:"speech"`
	Video  StageState `json:"video"`
}

// ErrorInfo is the failure payload attached when a job reaches FAILED.
type ErrorInfo struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
	TraceID   string `json:"trace_id"`
}

// TaskRecord is the full persisted state of one digital-human job.
type TaskRecord struct {
	JobID         string             `json:"job_id"`
	Status        TaskStatus         `json:"status"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
	Params        TaskRequest        `json:"params"`
	TraceID       string             `json:"trace_id"`
	Duration      float64            `json:"duration,omitempty"`
	Stages        Stages             `json:"stages"`
	Cost          float64            `json:"cost"`
	CostBreakdown map[string]float64 `json:"cost_breakdown"`
	Assets        map[string]any     `json:"assets"`
	Error         *ErrorInfo         `json:"error,omitempty"`
	ConfigHash    string             `json:"config_hash,omitempty"`
	Logs          []string           `json:"logs"`
}

// NewTaskRecord initializes a pending record for a fresh job.
func NewTaskRecord(jobID string, req TaskRequest, configHash string) *TaskRecord {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return &TaskRecord{
		JobID:     jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Params:    req,
		TraceID:   NewTraceID(),
		Stages: Stages{
			Avatar: StageState{State: "pending"},
			Speech: StageState{State: "pending"},
			Video:  StageState{State: "pending"},
		},
		CostBreakdown: map[string]float64{"avatar": 0, "speech": 0, "video": 0},
		Assets:        map[string]any{},
		ConfigHash:    configHash,
	}
}

// MarshalJSON flattens the asset URLs external consumers read most often
// (avatar_url, audio_url, video_url, video_path) next to the full record.
func (r *TaskRecord) MarshalJSON() ([]byte, error) {
	type plain TaskRecord
	return json.Marshal(struct {
		*plain
		AvatarURL any `json:"avatar_url"`
		AudioURL  any `json:"audio_url"`
		VideoURL  any `json:"video_url"`
		VideoPath any `json:"video_path"`
	}{
		plain:     (*plain)(r),
		AvatarURL: r.Assets["avatar_url"],
		AudioURL:  r.Assets["audio_url"],
		VideoURL:  r.Assets["video_url"],
		VideoPath: r.Assets["video_path"],
	})
}
