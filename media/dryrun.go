// ABOUTME: Dry-run placeholder clients that synthesize results without network I/O.
// ABOUTME: Used to integration-test orchestration logic without incurring external cost.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// dryRunBaseURL is the fake host placeholder URLs point at.
const dryRunBaseURL = "https://dry-run.invalid"

// writeStub writes a tiny placeholder file so downstream steps that check
// for the file's existence behave as they would on a real run.
func writeStub(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// DryRunScriptClient returns a canned script structure.
type DryRunScriptClient struct{}

func (DryRunScriptClient) Generate(_ context.Context, prompt string) (string, error) {
	return fmt.Sprintf(`{"narration": "dry-run narration", "shot_breakdown": [{"scene_summary": "dry-run scene"}], "prompt_chars": %d}`, len(prompt)), nil
}

// DryRunImageClient writes a stub PNG per prompt.
type DryRunImageClient struct{}

func (DryRunImageClient) GenerateImage(_ context.Context, prompt, outputPath string) (GeneratedFile, error) {
	if err := writeStub(outputPath, "dry-run image: "+prompt); err != nil {
		return GeneratedFile{}, err
	}
	return GeneratedFile{
		Path: outputPath,
		URL:  dryRunBaseURL + "/images/" + filepath.Base(outputPath),
	}, nil
}

// DryRunVideoClient writes a stub clip per prompt.
type DryRunVideoClient struct{}

func (DryRunVideoClient) GenerateVideo(_ context.Context, prompt, outputPath, referenceURL, resolution string) (GeneratedFile, error) {
	if err := writeStub(outputPath, fmt.Sprintf("dry-run video: %s (%s, ref=%s)", prompt, resolution, referenceURL)); err != nil {
		return GeneratedFile{}, err
	}
	return GeneratedFile{
		Path: outputPath,
		URL:  dryRunBaseURL + "/videos/" + filepath.Base(outputPath),
	}, nil
}

// DryRunVoiceClient writes a stub narration track with a fixed duration.
type DryRunVoiceClient struct{}

func (DryRunVoiceClient) Synthesize(_ context.Context, text, outputPath string) (VoiceSynthesis, error) {
	if err := writeStub(outputPath, "dry-run narration audio"); err != nil {
		return VoiceSynthesis{}, err
	}
	// Rough speech pacing so downstream timing math has something to chew on.
	duration := float64(len(text)) / 15.0
	if duration < 1 {
		duration = 1
	}
	return VoiceSynthesis{Path: outputPath, Duration: duration}, nil
}

// DryRunSubtitleClient writes a stub VTT file.
type DryRunSubtitleClient struct{}

func (DryRunSubtitleClient) CreateSubtitle(_ context.Context, voicePath, outputPath, text string, duration float64) (string, error) {
	if err := writeStub(outputPath, "WEBVTT\n\n00:00.000 --> 00:03.000\ndry-run subtitle\n"); err != nil {
		return "", err
	}
	return outputPath, nil
}

// DryRunMusicClient writes a stub track.
type DryRunMusicClient struct{}

func (DryRunMusicClient) PickMusic(_ context.Context, musicDir, outputPath, style string) (string, error) {
	if err := writeStub(outputPath, "dry-run music for style "+style); err != nil {
		return "", err
	}
	return outputPath, nil
}

// DryRunComposerClient writes a stub final video.
type DryRunComposerClient struct{}

func (DryRunComposerClient) Compose(_ context.Context, videos []string, voicePath, musicPath, subtitlePath, outputPath string) (string, error) {
	content := fmt.Sprintf("dry-run final video from %d clips", len(videos))
	if err := writeStub(outputPath, content); err != nil {
		return "", err
	}
	return outputPath, nil
}

// DryRunAvatarClient returns placeholder avatar URLs.
type DryRunAvatarClient struct{}

func (DryRunAvatarClient) GenerateImages(_ context.Context, prompts []string, resolution string, numImages int) ([]GeneratedImage, error) {
	out := make([]GeneratedImage, 0, numImages)
	for i := 0; i < numImages; i++ {
		out = append(out, GeneratedImage{
			URL:            fmt.Sprintf("%s/avatars/avatar-%d.png", dryRunBaseURL, i+1),
			ProviderTaskID: fmt.Sprintf("dry-avatar-%d", i+1),
		})
	}
	return out, nil
}

// DryRunSpeechClient writes a stub audio file and reports a paced duration.
type DryRunSpeechClient struct{}

func (DryRunSpeechClient) GenerateSpeech(_ context.Context, req SpeechRequest) (SpeechResult, error) {
	if err := writeStub(req.OutputPath, "dry-run speech audio"); err != nil {
		return SpeechResult{}, err
	}
	duration := float64(len(req.Text)) / 15.0
	if duration < 1 {
		duration = 1
	}
	return SpeechResult{
		AudioURL:       dryRunBaseURL + "/speech/" + filepath.Base(req.OutputPath),
		AudioPath:      req.OutputPath,
		ProviderTaskID: "dry-speech",
		Duration:       duration,
	}, nil
}

// DryRunLipSyncClient returns a placeholder render without a local file,
// exercising the runner's provider-URL fallback path.
type DryRunLipSyncClient struct{}

func (DryRunLipSyncClient) GenerateVideo(_ context.Context, req LipSyncRequest) (LipSyncResult, error) {
	return LipSyncResult{
		VideoURL:       dryRunBaseURL + "/renders/digital_human.mp4",
		ProviderTaskID: "dry-lipsync",
		Duration:       5,
	}, nil
}
