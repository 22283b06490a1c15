package harvester

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"cinodeharvest/pkg/cache"
	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/storage"
)

// TrimTitle cuts a project title at its first '.'
func TrimTitle(title string) string {
	if i := strings.IndexByte(title, '.'); i >= 0 {
		return title[:i]
	}
	return title
}

// ProjectDirName is the directory name of a project. A title that trims
// to nothing falls back to the project id.
func ProjectDirName(project cinode.ProjectRef) string {
	name := strings.TrimSpace(TrimTitle(project.Title))
	if name == "" {
		name = strconv.Itoa(project.ID)
	}
	return storage.SafeSegment(name)
}

// harvestProjects writes the attachments of each project into
// <parent>/<trimmed title>. Projects without attachments get no directory.
func (h *Harvester) harvestProjects(ctx context.Context, projects []cinode.ProjectRef, parent string) error {
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}

		listing, err := cache.GetOrFetch[cinode.ProjectAttachments](ctx, h.cache, h.opts.Endpoints.Project(project.ID))
		if err != nil {
			return err
		}
		if len(listing.Attachments) == 0 {
			continue
		}

		dir := filepath.Join(parent, ProjectDirName(project))
		if storage.AlreadyComplete(dir, len(listing.Attachments)) {
			h.skipped(dir, len(listing.Attachments))
			continue
		}

		for _, attachment := range listing.Attachments {
			if err := ctx.Err(); err != nil {
				return err
			}
			url := h.opts.Endpoints.ProjectAttachment(project.ID, attachment.ID)
			if err := h.fetchAndWrite(ctx, url, dir, attachment.IsFile()); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchAndWrite downloads one attachment into dir, as a file or as a
// text dump of the response
func (h *Harvester) fetchAndWrite(ctx context.Context, url, dir string, asFile bool) error {
	resp, err := h.client.Get(ctx, url)
	if err != nil {
		return err
	}

	if !asFile {
		if _, err := h.writer.WriteAsText(resp, dir); err != nil {
			return err
		}
		h.stats.TextDumps.Add(1)
		return nil
	}

	path, err := h.writer.WriteAttachment(resp, dir)
	if err != nil {
		return err
	}
	if path == "" {
		h.stats.EmptyResponses.Add(1)
		return nil
	}
	h.stats.FilesWritten.Add(1)
	return nil
}

func (h *Harvester) skipped(dir string, expected int) {
	h.stats.SkippedDirs.Add(1)
	h.logger.DebugWithFields("Directory already complete", map[string]interface{}{
		"dir":      dir,
		"expected": expected,
	})
}
