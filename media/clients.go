// ABOUTME: Collaborator interfaces for the external generation services the pipeline calls.
// ABOUTME: Implementations live outside the core; the orchestrators receive these via constructor injection.
package media

import "context"

// GeneratedFile is one produced asset: a local path, the provider URL it was
// fetched from (when the provider exposes one), and the reported cost in USD.
type GeneratedFile struct {
	Path string
	URL  string
	Cost float64
}

// GeneratedImage is one provider-hosted image result.
type GeneratedImage struct {
	URL            string
	ProviderTaskID string
	Cost           float64
}

// ScriptClient generates ad script text from a prompt (an LLM behind the scenes).
type ScriptClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageClient generates a single image for one shot prompt and downloads it
// to outputPath. Callers fan out across prompts themselves.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt, outputPath string) (GeneratedFile, error)
}

// VideoClient generates a single video clip for one shot prompt, optionally
// conditioned on a reference image URL, and downloads it to outputPath.
type VideoClient interface {
	GenerateVideo(ctx context.Context, prompt, outputPath, referenceURL, resolution string) (GeneratedFile, error)
}

// VoiceSynthesis is the result of narration synthesis.
type VoiceSynthesis struct {
	Path     string
	Duration float64
	Cost     float64
}

// VoiceClient synthesizes the narration track for the whole script.
type VoiceClient interface {
	Synthesize(ctx context.Context, text, outputPath string) (VoiceSynthesis, error)
}

// SubtitleClient renders a subtitle file aligned to the narration.
// An empty returned path means subtitles were skipped (non-fatal).
type SubtitleClient interface {
	CreateSubtitle(ctx context.Context, voicePath, outputPath, text string, duration float64) (string, error)
}

// MusicClient picks and prepares a background track for the given style.
// An empty returned path means no track was chosen (non-fatal).
type MusicClient interface {
	PickMusic(ctx context.Context, musicDir, outputPath, style string) (string, error)
}

// ComposerClient assembles clips, narration, music, and subtitles into the
// final video.
type ComposerClient interface {
	Compose(ctx context.Context, videos []string, voicePath, musicPath, subtitlePath, outputPath string) (string, error)
}

// AvatarClient generates portrait images for the digital-human avatar stage.
type AvatarClient interface {
	GenerateImages(ctx context.Context, prompts []string, resolution string, numImages int) ([]GeneratedImage, error)
}

// SpeechRequest carries the text-to-speech parameters for one job.
type SpeechRequest struct {
	Text       string
	VoiceID    string
	Speed      float64
	Pitch      int
	Emotion    string
	OutputPath string
}

// SpeechResult is the outcome of one TTS call.
type SpeechResult struct {
	AudioURL       string
	AudioPath      string
	ProviderTaskID string
	Duration       float64
	Cost           float64
}

// SpeechClient synthesizes the digital human's spoken audio.
type SpeechClient interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// LipSyncRequest drives the final lip-synced video render from an avatar
// image and an audio track.
type LipSyncRequest struct {
	ImageURL   string
	AudioURL   string
	Resolution string
	Seed       int
	MaskImage  string
}

// LipSyncResult is the outcome of one lip-sync render.
type LipSyncResult struct {
	VideoURL       string
	VideoPath      string
	ProviderTaskID string
	Duration       float64
	Cost           float64
}

// LipSyncClient renders the final digital-human video.
type LipSyncClient interface {
	GenerateVideo(ctx context.Context, req LipSyncRequest) (LipSyncResult, error)
}
