// ABOUTME: The digital-human job runner: avatar, speech, and video stages over an explicit status machine.
// ABOUTME: Persists the full record after every status change, stage update, and cost increment.
package digitalhuman

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/linapp/akavideo/config"
	"github.com/linapp/akavideo/media"
)

const (
	avatarResolution = "1024x1024"
	// Flat per-image estimate for generated avatars. Upload mode costs nothing.
	avatarImageCost = 0.03
)

// StatusNotifier receives every job status transition, typically a job index
// external consumers poll.
type StatusNotifier interface {
	UpdateStatus(jobID, status, message string) error
}

// AvatarUploadFunc stores a caller-provided avatar for upload-mode jobs and
// returns the URL the later stages should reference.
type AvatarUploadFunc func(ctx context.Context, jobID, uploadPath, destPath string) (string, error)

// Runner drives one digital-human job through its three stages.
// All collaborators are injected; the runner owns only the record.
type Runner struct {
	Avatar   media.AvatarClient
	Speech   media.SpeechClient
	LipSync  media.LipSyncClient
	Storage  *StorageService
	Notifier StatusNotifier
	// UploadAvatar handles avatar_mode == "upload" requests. Required only
	// when upload jobs are submitted.
	UploadAvatar AvatarUploadFunc
	// ConfigHash guards resumed jobs against configuration drift. Empty
	// disables the check.
	ConfigHash string
	Logger     *log.Logger
}

// taskContext bundles the per-job state the stage methods operate on.
type taskContext struct {
	jobID  string
	req    TaskRequest
	paths  TaskPaths
	record *TaskRecord
}

// Run executes the full avatar -> speech -> video pipeline for one job.
// On failure the record is marked FAILED with a diagnostic payload and the
// error is returned to the caller. The returned record is valid either way.
func (r *Runner) Run(ctx context.Context, jobID string, req TaskRequest) (*TaskRecord, error) {
	paths, err := r.Storage.PrepareTaskPaths(jobID)
	if err != nil {
		return nil, err
	}
	tc := &taskContext{
		jobID:  jobID,
		req:    req,
		paths:  paths,
		record: NewTaskRecord(jobID, req, r.ConfigHash),
	}

	if err := r.run(ctx, tc); err != nil {
		r.markFailed(tc, err)
		return tc.record, err
	}
	return tc.record, nil
}

func (r *Runner) run(ctx context.Context, tc *taskContext) error {
	if err := r.validateConfigHash(tc.jobID); err != nil {
		return err
	}
	r.setStatus(tc, StatusPending, "job created, waiting to run")
	if err := r.runAvatarStage(ctx, tc); err != nil {
		return err
	}
	if err := r.runSpeechStage(ctx, tc); err != nil {
		return err
	}
	if err := r.runVideoStage(ctx, tc); err != nil {
		return err
	}
	r.setStatus(tc, StatusFinished, "digital human video complete")
	return nil
}

// runAvatarStage produces the avatar image, either by generation or by the
// upload passthrough, and records its URL and cost.
func (r *Runner) runAvatarStage(ctx context.Context, tc *taskContext) error {
	r.setStatus(tc, StatusAvatarGenerating, "generating avatar...")

	var avatarURL string
	var cost float64
	if tc.req.AvatarMode == "upload" {
		if r.UploadAvatar == nil {
			return fmt.Errorf("avatar upload handler not configured")
		}
		url, err := r.UploadAvatar(ctx, tc.jobID, tc.req.AvatarUploadPath, tc.paths.AvatarPath)
		if err != nil {
			return fmt.Errorf("avatar upload: %w", err)
		}
		avatarURL = url
	} else {
		if r.Avatar == nil {
			return fmt.Errorf("avatar client not configured")
		}
		images, err := r.Avatar.GenerateImages(ctx, []string{tc.req.AvatarPrompt}, avatarResolution, 1)
		if err != nil {
			return fmt.Errorf("avatar generation: %w", err)
		}
		if len(images) == 0 {
			return fmt.Errorf("avatar generation returned no images")
		}
		avatarURL = images[0].URL
		tc.record.Stages.Avatar.ProviderTaskID = images[0].ProviderTaskID
		cost = avatarImageCost
		if images[0].Cost > 0 {
			cost = images[0].Cost
		}
	}

	r.updateStage(tc, "avatar", func(st *StageState) {
		st.State = "completed"
		st.Message = "avatar ready"
		st.OutputURL = avatarURL
	})
	tc.record.Assets["avatar_url"] = avatarURL
	r.increaseCost(tc, "avatar", cost)
	r.setStatus(tc, StatusAvatarReady, "avatar ready: "+avatarURL)
	return nil
}

// runSpeechStage synthesizes the spoken audio into the job directory.
func (r *Runner) runSpeechStage(ctx context.Context, tc *taskContext) error {
	r.setStatus(tc, StatusSpeechGenerating, "generating speech...")
	if r.Speech == nil {
		return fmt.Errorf("speech client not configured")
	}

	result, err := r.Speech.GenerateSpeech(ctx, media.SpeechRequest{
		Text:       tc.req.SpeechText,
		VoiceID:    tc.req.VoiceID,
		Speed:      tc.req.Speed,
		Pitch:      tc.req.Pitch,
		Emotion:    tc.req.Emotion,
		OutputPath: tc.paths.SpeechPath,
	})
	if err != nil {
		return fmt.Errorf("speech generation: %w", err)
	}

	r.increaseCost(tc, "speech", result.Cost)
	if result.Duration > 0 {
		tc.record.Duration = result.Duration
		tc.record.Assets["duration"] = result.Duration
	}
	r.updateStage(tc, "speech", func(st *StageState) {
		st.State = "completed"
		st.Message = fmt.Sprintf("speech ready (%.1fs)", result.Duration)
		st.ProviderTaskID = result.ProviderTaskID
		st.OutputURL = result.AudioURL
		st.ArtifactPath = tc.paths.SpeechPath
	})
	tc.record.Assets["audio_url"] = result.AudioURL
	if result.AudioPath != "" {
		tc.record.Assets["audio_path"] = result.AudioPath
	}
	r.setStatus(tc, StatusSpeechReady, "speech ready")
	return nil
}

// runVideoStage renders the lip-synced video, pulls a provider-local copy
// into the task dir when one exists, and publishes the result. Publishing
// failures fall back to the provider URL rather than failing the job.
func (r *Runner) runVideoStage(ctx context.Context, tc *taskContext) error {
	r.setStatus(tc, StatusVideoRendering, "rendering digital human video...")
	if r.LipSync == nil {
		return fmt.Errorf("lip-sync client not configured")
	}

	avatarURL, _ := tc.record.Assets["avatar_url"].(string)
	if avatarURL == "" {
		avatarURL = tc.record.Stages.Avatar.OutputURL
	}
	audioURL, _ := tc.record.Assets["audio_url"].(string)
	if audioURL == "" {
		audioURL = tc.record.Stages.Speech.OutputURL
	}

	result, err := r.LipSync.GenerateVideo(ctx, media.LipSyncRequest{
		ImageURL:   avatarURL,
		AudioURL:   audioURL,
		Resolution: tc.req.Resolution,
		Seed:       tc.req.Seed,
		MaskImage:  tc.req.MaskImage,
	})
	if err != nil {
		return fmt.Errorf("video generation: %w", err)
	}

	localPath := tc.paths.VideoPath
	if result.VideoPath != "" {
		if _, statErr := os.Stat(result.VideoPath); statErr == nil {
			if copyErr := r.Storage.CopyIntoTask(result.VideoPath, localPath); copyErr != nil {
				return fmt.Errorf("copy rendered video: %w", copyErr)
			}
		}
	}

	published, pubErr := r.Storage.PublishVideo(tc.jobID, localPath)
	if pubErr != nil {
		r.logf(tc, "WARN", "publishing unavailable: %v", pubErr)
		published = nil
	}

	r.increaseCost(tc, "video", result.Cost)
	videoURL := result.VideoURL
	if published != nil && published.URL != "" {
		videoURL = published.URL
	}
	tc.record.Assets["video_url"] = videoURL
	tc.record.Assets["video_path"] = localPath
	if published != nil {
		tc.record.Assets["public_video_path"] = published.Path
	}
	tc.record.Assets["local_video_url"] = "/output/" + tc.jobID + "/" + r.Storage.FinalVideoName()
	if result.Duration > 0 {
		tc.record.Duration = result.Duration
		tc.record.Assets["duration"] = result.Duration
	}

	r.updateStage(tc, "video", func(st *StageState) {
		st.State = "completed"
		st.Message = "digital human video complete"
		st.ProviderTaskID = result.ProviderTaskID
		st.OutputURL = videoURL
		st.ArtifactPath = localPath
	})
	return nil
}

// setStatus moves the record to a new status and persists. A repeated status
// refreshes the message. A non-listed edge warns and proceeds, except that
// terminal states are never left.
func (r *Runner) setStatus(tc *taskContext, status TaskStatus, message string) {
	current := tc.record.Status
	switch {
	case status == current:
		// message refresh
	case current.Terminal():
		r.logf(tc, "WARN", "refusing transition out of terminal state %s -> %s", current, status)
		return
	case !transitionAllowed(current, status):
		r.logf(tc, "WARN", "illegal transition %s -> %s", current, status)
	}

	tc.record.Status = status
	tc.record.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if message != "" {
		level := "INFO"
		if status == StatusFailed {
			level = "ERROR"
		}
		r.logf(tc, level, "%s", message)
	}
	if r.Notifier != nil {
		if err := r.Notifier.UpdateStatus(tc.jobID, string(status), message); err != nil {
			r.logf(tc, "WARN", "status notify failed: %v", err)
		}
	}
	r.persist(tc)
}

func (r *Runner) updateStage(tc *taskContext, stage string, mutate func(*StageState)) {
	var st *StageState
	switch stage {
	case "avatar":
		st = &tc.record.Stages.Avatar
	case "speech":
		st = &tc.record.Stages.Speech
	case "video":
		st = &tc.record.Stages.Video
	default:
		return
	}
	mutate(st)
	if st.Message != "" {
		r.logf(tc, "INFO", "[%s] %s", stage, st.Message)
	}
	r.persist(tc)
}

func (r *Runner) increaseCost(tc *taskContext, stage string, value float64) {
	tc.record.CostBreakdown[stage] += value
	total := 0.0
	for _, v := range tc.record.CostBreakdown {
		total += v
	}
	tc.record.Cost = total
	r.persist(tc)
}

// markFailed attaches a diagnostic payload and moves the job to FAILED.
func (r *Runner) markFailed(tc *taskContext, cause error) {
	tc.record.Error = &ErrorInfo{
		Message:   cause.Error(),
		Type:      errorType(cause),
		Retryable: media.IsRetryable(cause),
		TraceID:   tc.record.TraceID,
	}
	r.setStatus(tc, StatusFailed, "generation failed: "+cause.Error())
}

func errorType(err error) string {
	var apiErr *media.APIError
	if errors.As(err, &apiErr) {
		return "api_error"
	}
	var drift *config.DriftError
	if errors.As(err, &drift) {
		return "config_drift"
	}
	return "internal"
}

// persist writes the full record synchronously. Write failures are logged
// but never mask the business error in flight.
func (r *Runner) persist(tc *taskContext) {
	if err := r.Storage.SaveMetadata(tc.jobID, tc.record); err != nil && r.Logger != nil {
		r.Logger.Printf("[%s] persist failed: %v", tc.jobID, err)
	}
}

func (r *Runner) logf(tc *taskContext, level, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if r.Logger != nil {
		r.Logger.Printf("[%s] [%s] %s", tc.jobID, level, message)
	}
	tc.record.Logs = append(tc.record.Logs, "["+level+"] "+message)
	_ = r.Storage.AppendLog(tc.jobID, message, level, tc.record.TraceID)
}

// validateConfigHash rejects a job whose stored metadata was produced under
// a different configuration than the one currently loaded.
func (r *Runner) validateConfigHash(jobID string) error {
	if r.ConfigHash == "" {
		return nil
	}
	existing, err := r.Storage.LoadMetadata(jobID)
	if err != nil {
		return fmt.Errorf("load existing metadata: %w", err)
	}
	saved, _ := existing["config_hash"].(string)
	if saved != "" && saved != r.ConfigHash {
		return &config.DriftError{SavedHash: saved, CurrentHash: r.ConfigHash}
	}
	return nil
}
