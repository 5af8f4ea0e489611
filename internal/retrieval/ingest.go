package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragchat/internal/domain"
)

const (
	// chunkTargetLen is the soft upper bound for one chunk; paragraphs are
	// packed until the next one would cross it.
	chunkTargetLen = 1200
)

// Ingestor loads markdown files into the documents table. Re-ingesting a
// file replaces its previous chunks.
type Ingestor struct {
	docs domain.DocumentRepository
	log  *zap.Logger
}

func NewIngestor(docs domain.DocumentRepository, log *zap.Logger) *Ingestor {
	return &Ingestor{docs: docs, log: log}
}

// IngestDirectory ingests every .md file directly under dir and returns the
// number of files processed.
func (i *Ingestor) IngestDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read data dir: %w", err)
	}

	files := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		if err := i.IngestFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func (i *Ingestor) IngestFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	source := filepath.Base(path)
	chunks := ChunkText(string(raw))
	if len(chunks) == 0 {
		i.log.Warn("skipping empty file", zap.String("source", source))
		return nil
	}

	docs := make([]*domain.Document, len(chunks))
	for n, content := range chunks {
		docs[n] = &domain.Document{
			ID:      uuid.NewString(),
			Source:  source,
			ChunkNo: n,
			Content: content,
		}
	}

	if err := i.docs.DeleteBySource(ctx, source); err != nil {
		return err
	}
	if err := i.docs.Insert(ctx, docs); err != nil {
		return err
	}

	i.log.Info("ingested file",
		zap.String("source", source),
		zap.Int("chunks", len(docs)))
	return nil
}

// ChunkText splits markdown into chunks on blank lines, packing consecutive
// paragraphs until chunkTargetLen. A single oversized paragraph stays whole.
func ChunkText(text string) []string {
	paragraphs := splitParagraphs(text)

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+len(p)+2 > chunkTargetLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}
