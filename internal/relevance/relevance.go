// Package relevance selects existing workspace files worth showing to the
// oracle as context for a task.
package relevance

import (
	"context"
	"io/fs"
	"log"
	"path"
	"sort"

	"workeragent/internal/llm"
	"workeragent/internal/llmclient"
	"workeragent/internal/prompt"
	"workeragent/internal/safeio"
	"workeragent/internal/workspace"
)

// MaxFileSize is the largest file considered for relevance.
const MaxFileSize = 2_000_000

const temperature float32 = 0.1

// Filter returns the files under root that are relevant to userPrompt.
type Filter interface {
	Relevant(ctx context.Context, userPrompt string, root *safeio.SafeFS) ([]workspace.File, error)
}

// NoneFilter never selects anything.
type NoneFilter struct{}

func (NoneFilter) Relevant(context.Context, string, *safeio.SafeFS) ([]workspace.File, error) {
	return nil, nil
}

// AllFilter selects every readable file below the size limit, skipping the
// named directories.
type AllFilter struct {
	Skip []string
}

func (f AllFilter) Relevant(ctx context.Context, _ string, root *safeio.SafeFS) ([]workspace.File, error) {
	var out []workspace.File
	skip := skipSet(f.Skip)
	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != "." && skip[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if file, ok := readSmall(root, p); ok {
			out = append(out, file)
		}
		return nil
	})
	return out, err
}

// LLMFilter asks the oracle about every file, and descends into a directory
// only after the oracle judged both the parent listing and the directory
// itself relevant. Oracle failures count as "not relevant".
type LLMFilter struct {
	LLM    llmclient.LLMClient
	Skip   []string
	Logger *log.Logger
}

func (f *LLMFilter) Relevant(ctx context.Context, userPrompt string, root *safeio.SafeFS) ([]workspace.File, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseRelevance)
	return f.walk(ctx, userPrompt, root, ".", skipSet(f.Skip))
}

func (f *LLMFilter) walk(ctx context.Context, userPrompt string, root *safeio.SafeFS, dir string, skip map[string]bool) ([]workspace.File, error) {
	files, dirs, err := list(root, dir, skip)
	if err != nil {
		return nil, nil
	}

	var out []workspace.File
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, ok := readSmall(root, path.Join(dir, name))
		if !ok {
			continue
		}
		if f.judge(ctx, prompt.FileRelevance, prompt.FileRelevanceRequest(userPrompt, file.Path, file.Content)) {
			out = append(out, file)
		}
	}

	if len(dirs) == 0 || !f.judge(ctx, prompt.DirectoryRelevance, prompt.DirectoryRelevanceRequest(userPrompt, dir, dirs)) {
		return out, ctx.Err()
	}
	for _, name := range dirs {
		sub := path.Join(dir, name)
		subFiles, subDirs, _ := list(root, sub, skip)
		listing := append(subFiles, subDirs...)
		sort.Strings(listing)
		if !f.judge(ctx, prompt.DirectoryRelevance, prompt.DirectoryRelevanceRequest(userPrompt, sub, listing)) {
			continue
		}
		found, err := f.walk(ctx, userPrompt, root, sub, skip)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, ctx.Err()
}

func (f *LLMFilter) judge(ctx context.Context, system, request string) bool {
	reply, err := f.LLM.Complete(ctx, []llmclient.Message{
		llmclient.System(system),
		llmclient.User(request),
	}, temperature)
	if err != nil {
		if ctx.Err() == nil {
			f.logger().Printf("relevance: oracle error, treating as not relevant: %v", err)
		}
		return false
	}
	return prompt.IsTrue(reply)
}

func (f *LLMFilter) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

func list(root *safeio.SafeFS, dir string, skip map[string]bool) (files, dirs []string, err error) {
	entries, err := root.SafeReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		switch {
		case e.IsDir():
			if !skip[e.Name()] {
				dirs = append(dirs, e.Name())
			}
		case e.Type().IsRegular():
			files = append(files, e.Name())
		}
	}
	return files, dirs, nil
}

func readSmall(root *safeio.SafeFS, p string) (workspace.File, bool) {
	info, err := root.SafeStat(p)
	if err != nil || !info.Mode().IsRegular() || info.Size() >= MaxFileSize {
		return workspace.File{}, false
	}
	raw, err := root.SafeReadFile(p)
	if err != nil {
		return workspace.File{}, false
	}
	return workspace.File{Path: p, Content: string(raw)}, true
}

func skipSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
