// Package updater replaces the running hwcodec binary with the latest
// GitHub release.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/version"
)

// DefaultRepository is the release source.
const DefaultRepository = "smazurov/hwcodec"

var (
	// ErrNoRelease is returned when the repository has no matching release.
	ErrNoRelease = errors.New("no release found")
	// ErrUpToDate is returned by Apply when the latest release is not newer.
	ErrUpToDate = errors.New("already up to date")
	// ErrNotWritable is returned when the executable cannot be replaced.
	ErrNotWritable = errors.New("executable directory not writable")
)

// releaseSource is the part of *selfupdate.Updater the Updater drives.
type releaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

// Info describes the latest release.
type Info struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	ReleaseURL      string    `json:"release_url"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Options configures an Updater.
type Options struct {
	Repository string // owner/name, DefaultRepository when empty
	Prerelease bool
}

// Updater checks for and applies releases.
type Updater struct {
	source  releaseSource
	repo    selfupdate.Repository
	current string
	logger  *slog.Logger

	latest *selfupdate.Release
}

// New creates an Updater backed by GitHub releases.
func New(opts Options) (*Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	repo := opts.Repository
	if repo == "" {
		repo = DefaultRepository
	}
	return newUpdater(up, selfupdate.ParseSlug(repo), version.Version), nil
}

func newUpdater(source releaseSource, repo selfupdate.Repository, current string) *Updater {
	return &Updater{
		source:  source,
		repo:    repo,
		current: current,
		logger:  logging.GetLogger("updater"),
	}
}

// Check looks up the latest release. Development builds always see it as
// an update.
func (u *Updater) Check(ctx context.Context) (*Info, error) {
	rel, found, err := u.source.DetectLatest(ctx, u.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found || rel == nil {
		return nil, ErrNoRelease
	}
	u.latest = rel

	info := &Info{
		CurrentVersion:  u.current,
		LatestVersion:   rel.Version(),
		ReleaseNotes:    rel.ReleaseNotes,
		ReleaseURL:      rel.URL,
		PublishedAt:     rel.PublishedAt,
		AssetSize:       rel.AssetByteSize,
		UpdateAvailable: u.current == "dev" || rel.GreaterThan(u.current),
	}
	u.logger.Info("Update check complete", "current", info.CurrentVersion, "latest", info.LatestVersion, "available", info.UpdateAvailable)
	return info, nil
}

// Apply downloads the latest release over the running executable.
func (u *Updater) Apply(ctx context.Context) (*Info, error) {
	info, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, ErrUpToDate
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return info, fmt.Errorf("failed to locate executable: %w", err)
	}
	if err := checkWritable(filepath.Dir(exe)); err != nil {
		return info, err
	}

	u.logger.Info("Applying update", "version", info.LatestVersion, "path", exe)
	if err := u.source.UpdateTo(ctx, u.latest, exe); err != nil {
		return info, fmt.Errorf("failed to apply update: %w", err)
	}
	return info, nil
}

// checkWritable verifies a file can be created in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".hwcodec-update-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
