// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docs supplies the working set of source documents and the heading
// outlines the planner cites. Documents are normalized text (.md, .txt) read
// from a directory, or references (.ref) to files already uploaded to the
// model provider. Format conversion happens elsewhere.
package docs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// Provider returns the documents of a working set.
type Provider interface {
	Documents(ctx context.Context) ([]types.SourceDocument, error)
}

// DirProvider reads a directory of documents.
type DirProvider struct {
	Dir string
}

var (
	inlineExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}
	refExt     = ".ref"
	idInvalid  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Documents lists the directory's documents in file name order. IDs are
// derived from file names and are unique within the set.
func (p DirProvider) Documents(ctx context.Context) ([]types.SourceDocument, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory %s: %w", p.Dir, err)
	}

	var out []types.SourceDocument
	seen := map[string]int{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !inlineExts[ext] && ext != refExt {
			continue
		}

		path := filepath.Join(p.Dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", path, err)
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		doc := types.SourceDocument{ID: uniqueID(DocumentID(base), seen), Name: entry.Name()}
		if ext == refExt {
			ref, name := parseRef(string(data))
			if ref == "" {
				return nil, fmt.Errorf("document reference %s is empty", path)
			}
			doc.ProviderFileRef = ref
			doc.Name = base
			if name != "" {
				doc.Name = name
			}
		} else {
			doc.Content = string(data)
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
		}
		out = append(out, doc)
	}

	return out, nil
}

// DocumentID turns a file base name into a lowercase, hyphenated ID.
func DocumentID(name string) string {
	id := strings.Trim(idInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if id == "" {
		return "doc"
	}
	return id
}

func uniqueID(id string, seen map[string]int) string {
	seen[id]++
	if n := seen[id]; n > 1 {
		return fmt.Sprintf("%s-%d", id, n)
	}
	return id
}

// parseRef reads a .ref file: the provider file ID on the first line and an
// optional display name on the second.
func parseRef(data string) (ref, name string) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	ref = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		name = strings.TrimSpace(lines[1])
	}
	return ref, name
}

// Static returns a Provider over a fixed document list.
func Static(docs ...types.SourceDocument) Provider {
	return staticProvider(docs)
}

type staticProvider []types.SourceDocument

func (s staticProvider) Documents(context.Context) ([]types.SourceDocument, error) {
	return append([]types.SourceDocument(nil), s...), nil
}
