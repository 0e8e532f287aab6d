package packmgr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/remoteassets/internal/repository"
)

type ImportMode int

const (
	// ImportModeMerge only adds nodes that do not exist yet
	ImportModeMerge ImportMode = iota
	// ImportModeUpdate adds new nodes and overwrites existing ones; nothing is removed
	ImportModeUpdate
)

func (m ImportMode) String() string {
	switch m {
	case ImportModeMerge:
		return "merge"
	case ImportModeUpdate:
		return "update"
	}
	return "unknown"
}

const (
	ActionAdded   = "A"
	ActionUpdated = "U"
)

// packages nested in a package are stored here
const nestedPackagesRoot = "/etc/packages"

// ProgressListener receives one message per installed node.
type ProgressListener interface {
	OnMessage(action, path string)
}

type ListenerFunc func(action, path string)

func (f ListenerFunc) OnMessage(action, path string) {
	f(action, path)
}

type ImportOptions struct {
	Mode ImportMode
	// AutoSaveThreshold commits the session every N installed nodes; 0 commits once at the end
	AutoSaveThreshold int
	// NonRecursive skips sub packages contained in the package
	NonRecursive bool
	Listener     ProgressListener
}

type InstallResult struct {
	Package   Properties
	Installed int
	Skipped   int
}

// Install writes the nodes of a package archive into the session and commits.
func Install(ctx context.Context, s *repository.Session, data []byte, opts ImportOptions) (*InstallResult, error) {
	archive, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}

	result := &InstallResult{Package: archive.Properties}
	pending := 0

	for _, an := range archive.nodes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if opts.NonRecursive && repository.IsAncestorOrSelf(nestedPackagesRoot, an.path) {
			result.Skipped++
			continue
		}

		existing, err := s.Get(ctx, an.path)
		if err != nil {
			return result, fmt.Errorf("install %s: %w", an.path, err)
		}

		action := ActionAdded
		if existing != nil {
			if opts.Mode == ImportModeMerge {
				result.Skipped++
				continue
			}
			action = ActionUpdated
		}

		if err := installNode(ctx, s, &an); err != nil {
			return result, err
		}
		result.Installed++
		pending++

		if opts.Listener != nil {
			opts.Listener.OnMessage(action, an.path)
		}

		if opts.AutoSaveThreshold > 0 && pending >= opts.AutoSaveThreshold {
			if err := s.Commit(ctx); err != nil {
				return result, fmt.Errorf("install auto save: %w", err)
			}
			pending = 0
		}
	}

	if err := s.Commit(ctx); err != nil {
		return result, fmt.Errorf("install save: %w", err)
	}

	slog.Debug("package installed",
		"package", archive.Properties.Name,
		"mode", opts.Mode,
		"installed", result.Installed,
		"skipped", result.Skipped,
	)
	return result, nil
}

func installNode(ctx context.Context, s *repository.Session, an *archiveNode) error {
	if parent := repository.ParentPath(an.path); parent != "/" {
		if _, err := s.EnsureNode(ctx, parent, repository.TypeSlingFolder); err != nil {
			return fmt.Errorf("install %s: %w", an.path, err)
		}
	}

	n := repository.NewNode(an.path, an.entry.PrimaryType)
	n.ResourceType = an.entry.ResourceType
	n.MimeType = an.entry.MimeType
	if an.entry.Properties != nil {
		n.Properties = an.entry.Properties
	}
	if err := s.Put(ctx, n); err != nil {
		return fmt.Errorf("install %s: %w", an.path, err)
	}

	if an.binary != nil {
		if err := s.SetBinary(ctx, an.path, an.binary, an.entry.MimeType); err != nil {
			return fmt.Errorf("install binary %s: %w", an.path, err)
		}
	}
	return nil
}
