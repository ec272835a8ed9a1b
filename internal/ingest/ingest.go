// Package ingest loads text documents into the knowledge base: file
// walking, chunking, and role tagging from path conventions.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/rbac"
)

// Adder receives processed chunks. Implemented by knowledge.Store.
type Adder interface {
	Add(ctx context.Context, chunk knowledge.Chunk) error
}

// Result summarizes one ingestion run.
type Result struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	ChunksAdded    int
	Elapsed        time.Duration
}

// supportedExtensions limits ingestion to plain-text sources.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// roleKeywords maps path fragments to the role a document belongs to.
// A path matching no keyword gets the default roles.
var roleKeywords = map[rbac.Role][]string{
	rbac.RolePublic:     {"public", "external", "customer"},
	rbac.RoleClient:     {"client", "contract"},
	rbac.RoleEmployee:   {"employee", "internal", "staff", "team"},
	rbac.RoleSales:      {"sales", "marketing"},
	rbac.RoleHR:         {"hr", "human_resources", "human-resources"},
	rbac.RoleManagement: {"management", "manager", "supervisor"},
}

// Ingestor walks a directory and upserts its documents as chunks.
type Ingestor struct {
	store        Adder
	splitter     *Splitter
	defaultRoles []string
	logger       log.Logger
}

// New creates an Ingestor. defaultRoles apply to files whose path carries
// no role keyword; empty defaults fall back to public.
func New(store Adder, splitter *Splitter, defaultRoles []string, logger log.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge store is required")
	}
	if splitter == nil {
		splitter = NewSplitter(0, -1)
	}
	if len(defaultRoles) == 0 {
		defaultRoles = []string{string(rbac.RolePublic)}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{
		store:        store,
		splitter:     splitter,
		defaultRoles: defaultRoles,
		logger:       logger,
	}, nil
}

// AddDirectory walks dirPath and ingests every supported file. One bad
// file does not stop the run; failures are counted and logged.
func (i *Ingestor) AddDirectory(ctx context.Context, dirPath string) (*Result, error) {
	start := time.Now()

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}
	if info, err := os.Stat(absDir); err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	result := &Result{}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesSkipped++
			return nil
		}

		added, err := i.addFile(ctx, path)
		if err != nil {
			result.FilesFailed++
			i.logger.Warn("file ingestion failed", "path", path, "error", err)
			return nil
		}
		result.FilesProcessed++
		result.ChunksAdded += added
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	result.Elapsed = time.Since(start)
	i.logger.Info("ingestion finished",
		"processed", result.FilesProcessed,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"elapsed", result.Elapsed)
	return result, nil
}

// addFile reads, chunks, tags, and stores one document.
func (i *Ingestor) addFile(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the walked directory
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	roles := i.rolesForPath(path)
	source := filepath.Base(path)
	docID := docID(path)

	added := 0
	for idx, text := range i.splitter.Split(string(content)) {
		chunk := knowledge.Chunk{
			ID:           fmt.Sprintf("%s-%d", docID, idx),
			Text:         text,
			Source:       source,
			AllowedRoles: roles,
		}
		if err := i.store.Add(ctx, chunk); err != nil {
			return added, fmt.Errorf("store chunk %s: %w", chunk.ID, err)
		}
		added++
	}
	return added, nil
}

// rolesForPath infers visibility from path keywords, falling back to the
// configured defaults.
func (i *Ingestor) rolesForPath(path string) []string {
	lower := strings.ToLower(path)
	var roles []string
	for role, keywords := range roleKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				roles = append(roles, string(role))
				break
			}
		}
	}
	if len(roles) == 0 {
		return append([]string(nil), i.defaultRoles...)
	}
	return roles
}

// docID derives a stable chunk ID prefix from the absolute file path.
func docID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return "file_" + hex.EncodeToString(sum[:16])
}
