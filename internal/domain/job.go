package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusInitializing JobStatus = "initializing"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected without a retry.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// StepName identifies one phase of the pipeline.
type StepName string

const (
	StepCharacterLoading     StepName = "character_loading"
	StepStoryGeneration      StepName = "story_generation"
	StepStoryboardGeneration StepName = "storyboard_generation"
	StepVoiceGeneration      StepName = "voice_generation"
	StepVideoGeneration      StepName = "video_generation"
	StepFinalization         StepName = "finalization"
)

// Mandatory steps fail the job when they fail.
func (n StepName) Mandatory() bool {
	switch n {
	case StepCharacterLoading, StepStoryGeneration, StepFinalization:
		return true
	}
	return false
}

// ProgressTarget is the overall progress reported once the step starts.
func (n StepName) ProgressTarget() int {
	switch n {
	case StepCharacterLoading:
		return 20
	case StepStoryGeneration:
		return 45
	case StepStoryboardGeneration:
		return 65
	case StepVoiceGeneration:
		return 80
	case StepVideoGeneration:
		return 95
	case StepFinalization:
		return 100
	}
	return 0
}

// StepStatus enumerates step states. Completed, failed and skipped are terminal.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

type Step struct {
	Name          StepName   `json:"name"`
	Status        StepStatus `json:"status"`
	Message       string     `json:"message"`
	EstimatedTime int        `json:"estimatedTime"`
	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	FailedAt      *time.Time `json:"failedAt,omitempty"`
}

// Options are the recognized generation options after defaults are applied.
type Options struct {
	IncludeVoice    bool   `json:"includeVoice"`
	IncludeVideo    bool   `json:"includeVideo"`
	Length          string `json:"length"`
	Tone            string `json:"tone,omitempty"`
	MotionIntensity string `json:"motionIntensity,omitempty"`
	StoryType       string `json:"storyType,omitempty"`
	VoiceID         string `json:"voiceId,omitempty"`
}

// Warning is a non-fatal problem recorded against a job.
type Warning struct {
	Step    StepName  `json:"step"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Artifacts hold the durable output of each completed step so a resumed or
// retried run can reuse them. Values are never mutated once stored.
type Artifacts struct {
	Character            *Character        `json:"character,omitempty"`
	CharacterSubstituted bool              `json:"characterSubstituted,omitempty"`
	Story                *Story            `json:"story,omitempty"`
	Storyboard           *StoryboardResult `json:"storyboard,omitempty"`
	Narration            *Narration        `json:"narration,omitempty"`
	Video                *Video            `json:"video,omitempty"`
}

// Job is the authoritative state of one generation request.
type Job struct {
	ID                string    `json:"id"`
	Prompt            string    `json:"prompt"`
	CharacterID       string    `json:"characterId"`
	Style             string    `json:"style"`
	Genre             string    `json:"genre"`
	Options           Options   `json:"options"`
	Status            JobStatus `json:"status"`
	Progress          int       `json:"progress"`
	Steps             []Step    `json:"steps"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	EstimatedDuration int       `json:"estimatedDuration"`
	RetryCount        int       `json:"retryCount"`
	Result            *Result   `json:"result,omitempty"`
	Error             string    `json:"error,omitempty"`
	ErrorKind         ErrorKind `json:"errorKind,omitempty"`
	Warnings          []Warning `json:"warnings,omitempty"`
	Artifacts         Artifacts `json:"artifacts"`
}

// NewJob builds a job in the initializing state with its fixed step list.
func NewJob(id string, req GenerateRequest, now time.Time) *Job {
	opts := req.ResolvedOptions()
	names := PipelineSteps(opts)
	steps := make([]Step, 0, len(names))
	total := 0
	for _, name := range names {
		est := EstimateStep(name, opts)
		total += est
		steps = append(steps, Step{
			Name:          name,
			Status:        StepPending,
			Message:       pendingMessage(name),
			EstimatedTime: est,
		})
	}
	return &Job{
		ID:                id,
		Prompt:            req.Prompt,
		CharacterID:       req.CharacterID,
		Style:             req.Style,
		Genre:             req.Genre,
		Options:           opts,
		Status:            JobStatusInitializing,
		Steps:             steps,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDuration: total,
	}
}

// PipelineSteps returns the ordered step names for the given options.
func PipelineSteps(opts Options) []StepName {
	steps := []StepName{StepCharacterLoading, StepStoryGeneration, StepStoryboardGeneration}
	if opts.IncludeVoice {
		steps = append(steps, StepVoiceGeneration)
	}
	if opts.IncludeVideo {
		steps = append(steps, StepVideoGeneration)
	}
	return append(steps, StepFinalization)
}

// EstimateStep returns the expected duration of a step in seconds.
func EstimateStep(name StepName, opts Options) int {
	switch name {
	case StepCharacterLoading:
		return 2
	case StepStoryGeneration:
		switch opts.Length {
		case "short":
			return 10
		case "long":
			return 25
		}
		return 15
	case StepStoryboardGeneration:
		return 40
	case StepVoiceGeneration:
		if opts.Length == "long" {
			return 30
		}
		return 20
	case StepVideoGeneration:
		return 60
	case StepFinalization:
		return 2
	}
	return 0
}

func pendingMessage(name StepName) string {
	switch name {
	case StepCharacterLoading:
		return "Waiting to load character"
	case StepStoryGeneration:
		return "Waiting to write story"
	case StepStoryboardGeneration:
		return "Waiting to draw storyboard"
	case StepVoiceGeneration:
		return "Waiting to record narration"
	case StepVideoGeneration:
		return "Waiting to compose video"
	case StepFinalization:
		return "Waiting to finalize"
	}
	return "Pending"
}

// Step returns the step with the given name, or nil when the job lacks it.
func (j *Job) Step(name StepName) *Step {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i]
		}
	}
	return nil
}

// ProcessingSteps counts steps currently in processing.
func (j *Job) ProcessingSteps() int {
	n := 0
	for _, s := range j.Steps {
		if s.Status == StepProcessing {
			n++
		}
	}
	return n
}

// Touch advances UpdatedAt without ever moving it backwards.
func (j *Job) Touch(now time.Time) {
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}

// AdvanceProgress raises progress to p; lower values are ignored.
func (j *Job) AdvanceProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// AddWarning records a warning once.
func (j *Job) AddWarning(w Warning) {
	for _, existing := range j.Warnings {
		if existing == w {
			return
		}
	}
	j.Warnings = append(j.Warnings, w)
}

// Clone returns a copy safe to hand to another goroutine. Artifact and result
// payloads are shared because they are immutable once assigned.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Steps = make([]Step, len(j.Steps))
	for i, s := range j.Steps {
		out.Steps[i] = s
		out.Steps[i].StartedAt = cloneTime(s.StartedAt)
		out.Steps[i].CompletedAt = cloneTime(s.CompletedAt)
		out.Steps[i].FailedAt = cloneTime(s.FailedAt)
	}
	if j.Warnings != nil {
		out.Warnings = append([]Warning(nil), j.Warnings...)
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
