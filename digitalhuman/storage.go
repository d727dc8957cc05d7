// ABOUTME: Per-job artifact storage: task directory layout, metadata writes, log appends, and publishing.
// ABOUTME: Publishing copies the final video into a public mount and returns its URL; callers treat failures as "unavailable".
package digitalhuman

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultNamespace      = "ren"
	defaultFinalVideoName = "digital_human.mp4"
	// Go time layout for ren_MMDDHHMM publish slugs.
	defaultTaskDirLayout = "ren_01021504"
)

// TaskPaths is the fixed path set of one job's working directory.
type TaskPaths struct {
	TaskDir    string
	AvatarPath string
	SpeechPath string
	VideoPath  string
	MetaPath   string
	LogPath    string
}

// PublishInfo describes a published final video.
type PublishInfo struct {
	URL  string
	Path string
}

// StorageOptions configure a StorageService. Zero values fall back to the
// conventional defaults; publishing stays disabled until both PublicBaseURL
// and PublicExportDir are set.
type StorageOptions struct {
	OutputRoot      string
	PublicBaseURL   string
	PublicExportDir string
	Namespace       string
	FinalVideoName  string
	TaskDirLayout   string
}

// StorageService manages the local output tree for digital-human jobs and
// the optional public export mount final videos are published to.
type StorageService struct {
	outputRoot     string
	publicBaseURL  string
	publicRoot     string
	namespace      string
	finalVideoName string
	taskDirLayout  string

	baseIncludesNamespace bool
	now                   func() time.Time
}

// NewStorageService builds a storage service rooted at opts.OutputRoot.
// A public export dir that cannot be created (typically a permission problem
// on the mount) disables publishing instead of failing construction.
func NewStorageService(opts StorageOptions) (*StorageService, error) {
	if opts.OutputRoot == "" {
		opts.OutputRoot = "output"
	}
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.FinalVideoName == "" {
		opts.FinalVideoName = defaultFinalVideoName
	}
	if opts.TaskDirLayout == "" {
		opts.TaskDirLayout = defaultTaskDirLayout
	}

	if err := os.MkdirAll(opts.OutputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}

	s := &StorageService{
		outputRoot:     opts.OutputRoot,
		publicBaseURL:  strings.TrimRight(opts.PublicBaseURL, "/"),
		namespace:      strings.Trim(opts.Namespace, "/ "),
		finalVideoName: opts.FinalVideoName,
		taskDirLayout:  opts.TaskDirLayout,
		now:            time.Now,
	}
	if s.publicBaseURL != "" && s.namespace != "" {
		s.baseIncludesNamespace = strings.HasSuffix(s.publicBaseURL, "/"+s.namespace)
	}

	if opts.PublicExportDir != "" {
		root := opts.PublicExportDir
		if s.namespace != "" {
			root = filepath.Join(root, s.namespace)
		}
		if err := os.MkdirAll(root, 0o755); err == nil {
			s.publicRoot = root
		}
	}
	return s, nil
}

// FinalVideoName is the file name final videos are stored and published under.
func (s *StorageService) FinalVideoName() string {
	return s.finalVideoName
}

// PrepareTaskPaths creates the job directory and returns its path set.
func (s *StorageService) PrepareTaskPaths(jobID string) (TaskPaths, error) {
	taskDir := filepath.Join(s.outputRoot, jobID)
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return TaskPaths{}, fmt.Errorf("create task dir: %w", err)
	}
	return TaskPaths{
		TaskDir:    taskDir,
		AvatarPath: filepath.Join(taskDir, "avatar.png"),
		SpeechPath: filepath.Join(taskDir, "speech.mp3"),
		VideoPath:  filepath.Join(taskDir, s.finalVideoName),
		MetaPath:   filepath.Join(taskDir, "task.json"),
		LogPath:    filepath.Join(taskDir, "log.txt"),
	}, nil
}

// SaveMetadata writes the job's task.json atomically.
func (s *StorageService) SaveMetadata(jobID string, payload any) error {
	paths, err := s.PrepareTaskPaths(jobID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp := paths.MetaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, paths.MetaPath); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the job's task.json. A missing file returns an empty map.
func (s *StorageService) LoadMetadata(jobID string) (map[string]any, error) {
	paths, err := s.PrepareTaskPaths(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(paths.MetaPath)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return payload, nil
}

// CopyIntoTask copies an external file into the job directory. Copying a
// path onto itself is a no-op.
func (s *StorageService) CopyIntoTask(source, destination string) error {
	if source == destination {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	out, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return out.Close()
}

// AppendLog appends one timestamped line to the job's log.txt.
func (s *StorageService) AppendLog(jobID, message, level, traceID string) error {
	paths, err := s.PrepareTaskPaths(jobID)
	if err != nil {
		return err
	}
	parts := []string{
		"[" + s.now().UTC().Format(time.RFC3339Nano) + "]",
		"[" + strings.ToUpper(level) + "]",
	}
	if traceID != "" {
		parts = append(parts, "[trace="+traceID+"]")
	}
	line := strings.Join(parts, " ") + " " + strings.TrimRight(message, "\n ") + "\n"

	f, err := os.OpenFile(paths.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append log: %w", err)
	}
	return f.Close()
}

// PublishVideo copies a final video into the public export mount and returns
// its URL. Returns nil when publishing is not configured. A missing local
// video is an error the caller should treat as "publishing unavailable".
func (s *StorageService) PublishVideo(jobID, localVideoPath string) (*PublishInfo, error) {
	if s.publicRoot == "" || s.publicBaseURL == "" {
		return nil, nil
	}
	if _, err := os.Stat(localVideoPath); err != nil {
		return nil, fmt.Errorf("publish source: %w", err)
	}

	slug := s.now().UTC().Format(s.taskDirLayout)
	if slug == "" {
		slug = jobID
	}
	destDir := filepath.Join(s.publicRoot, slug)
	for index := 2; ; index++ {
		if _, err := os.Stat(destDir); os.IsNotExist(err) {
			break
		}
		destDir = filepath.Join(s.publicRoot, fmt.Sprintf("%s-%d", slug, index))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create publish dir: %w", err)
	}

	destPath := filepath.Join(destDir, s.finalVideoName)
	if err := s.CopyIntoTask(localVideoPath, destPath); err != nil {
		return nil, err
	}

	urlParts := []string{s.publicBaseURL}
	if s.namespace != "" && !s.baseIncludesNamespace {
		urlParts = append(urlParts, s.namespace)
	}
	urlParts = append(urlParts, filepath.Base(destDir), s.finalVideoName)
	return &PublishInfo{URL: strings.Join(urlParts, "/"), Path: destPath}, nil
}
