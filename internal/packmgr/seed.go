package packmgr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/openmined/remoteassets/internal/utils"
	"gopkg.in/yaml.v3"
)

const typeTag = "cq:Tag"

// Seed is the initial content of an author repository.
type Seed struct {
	Assets []SeedAsset `yaml:"assets"`
	Tags   []SeedTag   `yaml:"tags"`

	dir string
}

type SeedAsset struct {
	Path       string          `yaml:"path"`
	MimeType   string          `yaml:"mimeType"`
	File       string          `yaml:"file"`
	Data       string          `yaml:"data"`
	Renditions []SeedRendition `yaml:"renditions"`
}

type SeedRendition struct {
	Name     string `yaml:"name"`
	MimeType string `yaml:"mimeType"`
	File     string `yaml:"file"`
	Data     string `yaml:"data"`
}

type SeedTag struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
}

// LoadSeed reads a YAML seed. Relative file references resolve against its directory.
func LoadSeed(path string) (*Seed, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve seed path: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	seed, err := ParseSeed(b)
	if err != nil {
		return nil, err
	}
	seed.dir = filepath.Dir(path)
	return seed, nil
}

func ParseSeed(b []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for _, a := range seed.Assets {
		if !dam.IsDamPath(a.Path) {
			return nil, fmt.Errorf("seed asset %q is not under %s", a.Path, dam.MountPoint)
		}
	}
	return &seed, nil
}

// Apply writes the seed content and commits.
func (s *Seed) Apply(ctx context.Context, session *repository.Session) error {
	for _, tag := range s.Tags {
		if _, err := session.EnsureNode(ctx, tag.Path, typeTag); err != nil {
			return fmt.Errorf("seed tag %s: %w", tag.Path, err)
		}
		if tag.Title != "" {
			if err := session.SetProperties(ctx, tag.Path, map[string]any{"jcr:title": tag.Title}); err != nil {
				return err
			}
		}
	}

	for _, sa := range s.Assets {
		data, err := s.content(sa.File, sa.Data)
		if err != nil {
			return fmt.Errorf("seed asset %s: %w", sa.Path, err)
		}
		mimeType := sa.MimeType
		if mimeType == "" {
			mimeType = utils.DetectContentType(sa.Path, data)
		}

		asset, err := dam.CreateAsset(ctx, session, sa.Path, data, mimeType)
		if err != nil {
			return err
		}

		for _, sr := range sa.Renditions {
			rdata, err := s.content(sr.File, sr.Data)
			if err != nil {
				return fmt.Errorf("seed rendition %s/%s: %w", sa.Path, sr.Name, err)
			}
			rmime := sr.MimeType
			if rmime == "" {
				rmime = utils.DetectContentType(sr.Name, rdata)
			}
			if _, err := asset.AddRendition(ctx, sr.Name, rdata, rmime); err != nil {
				return err
			}
		}
	}

	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("seed applied", "assets", len(s.Assets), "tags", len(s.Tags))
	return nil
}

func (s *Seed) content(file, inline string) ([]byte, error) {
	if file == "" {
		return []byte(inline), nil
	}
	if !filepath.IsAbs(file) && s.dir != "" {
		file = filepath.Join(s.dir, file)
	}
	return os.ReadFile(file)
}
